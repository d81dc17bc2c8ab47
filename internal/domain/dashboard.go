package domain

// StatusCounts aggregates tickets per status axis.
type StatusCounts struct {
	Total          int64                   `json:"total"`
	ByTicketStatus map[TicketStatus]int64  `json:"by_ticket_status"`
	ByProjectState map[ProjectStatus]int64 `json:"by_project_status"`
}
