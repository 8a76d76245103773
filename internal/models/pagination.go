package models

import "github.com/noah-isme/edu-admin-console/pkg/listview"

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page        int                  `json:"page"`
	PageSize    int                  `json:"page_size"`
	TotalCount  int                  `json:"total_count"`
	TotalPages  int                  `json:"total_pages"`
	PageNumbers []listview.PageToken `json:"page_numbers"`
}
