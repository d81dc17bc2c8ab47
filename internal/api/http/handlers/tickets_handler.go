package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/studio-desk/internal/api/dto"
	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/permission"
	"github.com/spec-kit/studio-desk/internal/service"
	"github.com/spec-kit/studio-desk/internal/upload"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

// TicketsHandler exposes project ticket endpoints for every role.
type TicketsHandler struct {
	tickets    *service.TicketService
	assignment *service.AssignmentService
	stager     *upload.Stager
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, assignment *service.AssignmentService, stager *upload.Stager) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignment: assignment, stager: stager}
}

// CreateTicket POST /tickets. Accepts JSON, or multipart with the same
// fields plus any number of "files" parts that become INPUT files.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var (
		req    dto.CreateTicketRequest
		staged []domain.StagedFile
	)
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperrors.NewValidationError("invalid multipart body", nil)
		}
		if req, err = createRequestFromForm(form.Value); err != nil {
			return err
		}
		if err := dto.Validate(&req); err != nil {
			return err
		}
		if err := permission.AuthorizeCreate(actor); err != nil {
			return err
		}
		if staged, err = h.stager.Stage(c.UserContext(), form.File["files"]); err != nil {
			return err
		}
	} else if err := dto.DecodeStrict(c.Body(), &req); err != nil {
		return err
	}

	ticket, files, err := h.tickets.Create(c.UserContext(), actor, req.Draft(), staged)
	if err != nil {
		return err
	}
	resp := dto.CreateTicketResponse{Ticket: dto.NewTicketResponse(ticket), Files: make([]dto.FileResponse, 0, len(files))}
	for _, f := range files {
		resp.Files = append(resp.Files, dto.NewFileResponse(f))
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.List(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := dto.DecodeStrict(c.Body(), &req); err != nil {
		return err
	}
	ticket, err := h.tickets.Update(c.UserContext(), actor, c.Params("id"), req.Patch())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ClaimTicket POST /tickets/:id/claim.
func (h *TicketsHandler) ClaimTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.assignment.Claim(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AssignTicket PUT /tickets/:id/assignee.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssigneeRequest
	if err := dto.DecodeStrict(c.Body(), &req); err != nil {
		return err
	}
	if !req.EditorID.Set {
		return apperrors.NewMissingField("editor_id")
	}
	ticket, err := h.assignment.Assign(c.UserContext(), actor, c.Params("id"), req.EditorID.Value)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.History(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries)})
}

// Dashboard GET /dashboard.
func (h *TicketsHandler) Dashboard(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	counts, err := h.tickets.Dashboard(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": counts})
}

func createRequestFromForm(values map[string][]string) (dto.CreateTicketRequest, error) {
	get := func(key string) string {
		if v := values[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	req := dto.CreateTicketRequest{
		Subject:      get("subject"),
		ProjectTitle: get("project_title"),
		Description:  get("description"),
		Priority:     domain.TicketPriority(strings.ToUpper(strings.TrimSpace(get("priority")))),
	}
	if raw := strings.TrimSpace(get("budget")); raw != "" {
		budget, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, apperrors.NewValidationError("budget must be a number", map[string]any{"field": "budget"})
		}
		req.Budget = &budget
	}
	if raw := strings.TrimSpace(get("deadline")); raw != "" {
		deadline, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return req, apperrors.NewValidationError("deadline must be RFC3339", map[string]any{"field": "deadline"})
		}
		req.Deadline = &deadline
	}
	return req, nil
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	var filter service.TicketListFilter
	for _, raw := range splitList(c.Query("ticket_status")) {
		s := domain.TicketStatus(strings.ToUpper(raw))
		if !s.Valid() {
			return filter, apperrors.NewValidationError("unknown ticket_status", map[string]any{"ticket_status": raw})
		}
		filter.TicketStatuses = append(filter.TicketStatuses, s)
	}
	for _, raw := range splitList(c.Query("project_status")) {
		s := domain.ProjectStatus(strings.ToUpper(raw))
		if !s.Valid() {
			return filter, apperrors.NewValidationError("unknown project_status", map[string]any{"project_status": raw})
		}
		filter.ProjectStatuses = append(filter.ProjectStatuses, s)
	}
	for _, raw := range splitList(c.Query("priority")) {
		p := domain.TicketPriority(strings.ToUpper(raw))
		if !p.Valid() {
			return filter, apperrors.NewValidationError("unknown priority", map[string]any{"priority": raw})
		}
		filter.Priorities = append(filter.Priorities, p)
	}
	filter.EditorID = optionalQuery(c, "editor_id")
	filter.SearchTerm = optionalQuery(c, "q")

	limit, offset, err := pagination(c)
	if err != nil {
		return filter, err
	}
	filter.Limit = limit
	filter.Offset = offset
	return filter, nil
}
