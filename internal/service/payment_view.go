package service

import (
	"context"
	"fmt"

	"github.com/noah-isme/edu-admin-console/internal/dispatch"
	"github.com/noah-isme/edu-admin-console/internal/dto"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
)

const topCourses = 5

func paymentID(p models.Payment) (string, bool) { return present(p.ID) }
func paymentStudent(p models.Payment) (string, bool) { return present(p.StudentName) }
func paymentRegistration(p models.Payment) (string, bool) { return present(p.RegistrationNumber) }
func paymentTransaction(p models.Payment) (string, bool) { return present(p.TransactionID) }
func paymentType(p models.Payment) (string, bool) { return present(p.PaymentType) }
func paymentStatus(p models.Payment) (string, bool) { return p.Status(), true }
func paymentCreated(p models.Payment) (string, bool) { return present(p.CreatedAt) }
func paymentMonth(p models.Payment) (string, bool) { return monthOf(p.CreatedAt) }
func paymentYear(p models.Payment) (string, bool) { return yearOf(p.CreatedAt) }
func paymentFees(p models.Payment) (float64, bool) { return p.FinalFees.Float() }
func paymentApproved(p models.Payment) bool              { return p.Approved }
func paymentPending(p models.Payment) bool               { return !p.Approved }

func (s *ViewService) paymentSpec() *pageSpec[models.Payment] {
	return &pageSpec[models.Payment]{
		name: PagePayments,
		chain: listview.NewChain(
			listview.Search("search", paymentID, paymentStudent, paymentRegistration, models.Payment.CourseName, paymentTransaction),
			listview.Equals("status", paymentStatus),
			listview.Equals("course", models.Payment.CourseName),
			listview.Equals("batch", models.Payment.BatchName),
			listview.Equals("payment_type", paymentType),
			listview.Equals("month", paymentMonth),
			listview.Equals("year", paymentYear),
			listview.DateRange("start_date", "end_date", paymentCreated),
		),
		aggKeys: []string{"course", "batch", "payment_type", "month", "year"},
		fetch:   s.api.ListPayments,
		stats:   paymentStats,
		export: exportSpec[models.Payment]{
			title:   "Payments",
			headers: []string{"ID", "Student", "Registration No.", "Course", "Batch", "Payment Type", "Transaction ID", "Final Fees", "Status", "Created At"},
			row: func(p models.Payment) []string {
				course, _ := p.CourseName()
				batch, _ := p.BatchName()
				return []string{p.ID, p.StudentName, p.RegistrationNumber, course, batch, p.PaymentType, p.TransactionID, formatAmount(p.FinalFees), p.Status(), p.CreatedAt}
			},
			summary: func(records []models.Payment) []string {
				revenue := listview.Summarize(records, paymentApproved, paymentFees)
				return []string{
					fmt.Sprintf("Approved payments: %d", revenue.Count),
					fmt.Sprintf("Approved revenue: %.2f", revenue.Total),
				}
			},
		},
	}
}

// paymentStats computes the revenue panel over the aggregation set and the
// approval counters over the table set.
func paymentStats(snap listview.Snapshot[models.Payment]) interface{} {
	return dto.PaymentStats{
		Revenue:       listview.Summarize(snap.Aggregated, paymentApproved, paymentFees),
		TopCourses:    listview.Top(listview.Breakdown(snap.Aggregated, paymentApproved, models.Payment.CourseName, paymentFees), topCourses),
		ByPaymentType: listview.Breakdown(snap.Aggregated, paymentApproved, paymentType, paymentFees),
		Approved:      listview.Count(snap.Filtered, paymentApproved),
		Pending:       listview.Count(snap.Filtered, paymentPending),
	}
}

// Payments opens the payments page.
func (s *ViewService) Payments(ctx context.Context, actor Actor, q ViewQuery) (*PageResult[models.Payment], error) {
	return openPage(ctx, s, actor, PagePayments, func(ws *Workspace) *PageView[models.Payment] { return ws.payments }, q)
}

// ApprovePayment approves a pending payment once the caller confirmed.
func (s *ViewService) ApprovePayment(ctx context.Context, actor Actor, id string, confirmed bool) (dispatch.Result, error) {
	if err := authorize(actor, PagePayments); err != nil {
		return dispatch.Result{}, err
	}
	ws := s.registry.Acquire(actor.UserID, actor.Session)
	return dispatchOn(ctx, s, actor, ws.payments, mutation{
		page:        PagePayments,
		action:      "approve",
		recordID:    id,
		destructive: true,
		prompt:      "Approve this payment?",
		run:         func(ctx context.Context) error { return s.api.ApprovePayment(ctx, id) },
	}, dispatch.Confirmed(confirmed))
}

// UpdatePayment edits payment details.
func (s *ViewService) UpdatePayment(ctx context.Context, actor Actor, id string, req models.UpdatePaymentRequest) (dispatch.Result, error) {
	if err := authorize(actor, PagePayments); err != nil {
		return dispatch.Result{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dispatch.Result{}, err
	}
	ws := s.registry.Acquire(actor.UserID, actor.Session)
	return dispatchOn(ctx, s, actor, ws.payments, mutation{
		page:     PagePayments,
		action:   "update",
		recordID: id,
		run:      func(ctx context.Context) error { return s.api.UpdatePayment(ctx, id, req) },
	}, nil)
}
