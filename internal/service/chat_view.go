package service

import (
	"context"

	"github.com/noah-isme/edu-admin-console/internal/dispatch"
	"github.com/noah-isme/edu-admin-console/internal/dto"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
)

func chatSender(m models.ChatMessage) (string, bool) { return present(m.SenderName) }
func chatBody(m models.ChatMessage) (string, bool) { return present(m.Body) }
func chatRole(m models.ChatMessage) (string, bool) { return present(string(m.SenderRole)) }
func chatBatch(m models.ChatMessage) (string, bool) { return present(m.BatchID) }

func (s *ViewService) chatSpec() *pageSpec[models.ChatMessage] {
	return &pageSpec[models.ChatMessage]{
		name: PageChat,
		chain: listview.NewChain(
			listview.Search("search", chatSender, chatBody),
			listview.Equals("sender_role", chatRole),
			listview.Equals("batch", chatBatch),
		),
		fetch: func(ctx context.Context) ([]models.ChatMessage, error) {
			return s.api.ListChatMessages(ctx, "")
		},
		interval: s.cfg.ChatPollInterval,
		stats: func(snap listview.Snapshot[models.ChatMessage]) interface{} {
			return dto.ChatStats{
				BySenderRole: listview.Breakdown(snap.Filtered, nil, chatRole, listview.One[models.ChatMessage]),
			}
		},
		export: exportSpec[models.ChatMessage]{
			title:   "Chat Messages",
			headers: []string{"ID", "Batch", "Sender", "Role", "Message", "Sent At"},
			row: func(m models.ChatMessage) []string {
				return []string{m.ID, m.BatchID, m.SenderName, string(m.SenderRole), m.Body, m.CreatedAt}
			},
		},
	}
}

// Chat opens the chat page. It is polled while mounted.
func (s *ViewService) Chat(ctx context.Context, actor Actor, q ViewQuery) (*PageResult[models.ChatMessage], error) {
	return openPage(ctx, s, actor, PageChat, func(ws *Workspace) *PageView[models.ChatMessage] { return ws.chat }, q)
}

// SendChatMessage posts a message to a batch thread.
func (s *ViewService) SendChatMessage(ctx context.Context, actor Actor, req models.SendChatMessageRequest) (dispatch.Result, error) {
	if err := authorize(actor, PageChat); err != nil {
		return dispatch.Result{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dispatch.Result{}, err
	}
	ws := s.registry.Acquire(actor.UserID, actor.Session)
	return dispatchOn(ctx, s, actor, ws.chat, mutation{
		page:   PageChat,
		action: "send",
		run:    func(ctx context.Context) error { return s.api.SendChatMessage(ctx, req) },
	}, nil)
}
