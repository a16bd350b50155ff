package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/hierarchy"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/services"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/application"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/composables"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/httpapi"
)

type AssignmentAPI interface {
	Assign(ctx context.Context, req services.AssignmentRequest, actorID uuid.UUID) (*services.Assignment, error)
	Terminate(ctx context.Context, req services.TerminationRequest, actorID uuid.UUID) (*services.Assignment, error)
	Transfer(ctx context.Context, req services.TransferRequest, actorID uuid.UUID) (*services.Assignment, error)
	ListHolders(ctx context.Context, positionID uuid.UUID, actorID uuid.UUID) (*services.PositionHolders, error)
}

type PositionAPI interface {
	CreatePosition(ctx context.Context, req services.CreatePositionRequest, actorID uuid.UUID) (*services.Position, error)
	UpdateHierarchy(ctx context.Context, req services.UpdateHierarchyRequest, actorID uuid.UUID) (*services.HierarchyEdges, error)
	DeletePosition(ctx context.Context, positionID uuid.UUID, actorID uuid.UUID) (bool, error)
}

type HierarchyAPI interface {
	Authorize(ctx context.Context, actorID uuid.UUID, entity services.EntityType, entityID uuid.UUID) error
	GetReportingChain(ctx context.Context, positionID uuid.UUID) ([]hierarchy.ChainEntry, error)
	GetSubordinates(ctx context.Context, positionID uuid.UUID) ([]hierarchy.Subordinate, error)
	ValidateHierarchy(ctx context.Context) (hierarchy.Report, error)
}

// RetryOptions bound the replay of writes that lost a serialization race.
type RetryOptions struct {
	MaxRetries uint64
	Base       time.Duration
}

type OrgAPIController struct {
	assignments AssignmentAPI
	positions   PositionAPI
	hierarchy   HierarchyAPI
	retry       RetryOptions
	apiPrefix   string
}

func NewOrgAPIController(app application.Application, retryOpts RetryOptions) application.Controller {
	return newOrgAPIController(
		app.Service(services.AssignmentService{}).(*services.AssignmentService),
		app.Service(services.PositionService{}).(*services.PositionService),
		app.Service(services.HierarchyService{}).(*services.HierarchyService),
		retryOpts,
	)
}

func newOrgAPIController(a AssignmentAPI, p PositionAPI, h HierarchyAPI, retryOpts RetryOptions) *OrgAPIController {
	if retryOpts.Base <= 0 {
		retryOpts.Base = 25 * time.Millisecond
	}
	return &OrgAPIController{
		assignments: a,
		positions:   p,
		hierarchy:   h,
		retry:       retryOpts,
		apiPrefix:   "/org/api",
	}
}

func (c *OrgAPIController) Key() string {
	return c.apiPrefix
}

func (c *OrgAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()

	api.HandleFunc("/assignments", instrumentAPI("org.assignments.assign", c.Assign)).Methods(http.MethodPost)
	api.HandleFunc("/assignments/{id}:terminate", instrumentAPI("org.assignments.terminate", c.Terminate)).Methods(http.MethodPost)
	api.HandleFunc("/assignments/{id}:transfer", instrumentAPI("org.assignments.transfer", c.Transfer)).Methods(http.MethodPost)

	api.HandleFunc("/positions", instrumentAPI("org.positions.create", c.CreatePosition)).Methods(http.MethodPost)
	api.HandleFunc("/positions/{id}", instrumentAPI("org.positions.delete", c.DeletePosition)).Methods(http.MethodDelete)
	api.HandleFunc("/positions/{id}/hierarchy", instrumentAPI("org.positions.update_hierarchy", c.UpdateHierarchy)).Methods(http.MethodPatch)
	api.HandleFunc("/positions/{id}/holders", instrumentAPI("org.positions.holders", c.ListHolders)).Methods(http.MethodGet)
	api.HandleFunc("/positions/{id}/chain", instrumentAPI("org.positions.chain", c.GetReportingChain)).Methods(http.MethodGet)
	api.HandleFunc("/positions/{id}/subordinates", instrumentAPI("org.positions.subordinates", c.GetSubordinates)).Methods(http.MethodGet)

	api.HandleFunc("/hierarchy:validate", instrumentAPI("org.hierarchy.validate", c.ValidateHierarchy)).Methods(http.MethodGet)
}

type assignRequest struct {
	PersonID    uuid.UUID  `json:"person_id"`
	PositionID  uuid.UUID  `json:"position_id"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	IsPlt       bool       `json:"is_plt"`
	AppointedBy *uuid.UUID `json:"appointed_by"`
	SKNumber    *string    `json:"sk_number"`
	Notes       *string    `json:"notes"`
}

func (c *OrgAPIController) Assign(w http.ResponseWriter, r *http.Request) {
	actorID, requestID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var body assignRequest
	if err := httpapi.DecodeStrict(r.Body, &body); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, string(services.KindInvalidRequest), "invalid json body", nil)
		return
	}
	start, err := parseRequiredDate(body.StartDate)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, string(services.KindInvalidRequest), "start_date is invalid", map[string]string{"field": "start_date"})
		return
	}
	end, err := parseOptionalDate(body.EndDate)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, string(services.KindInvalidRequest), "end_date is invalid", map[string]string{"field": "end_date"})
		return
	}

	req := services.AssignmentRequest{
		PersonID:    body.PersonID,
		PositionID:  body.PositionID,
		StartDate:   start,
		EndDate:     end,
		IsPlt:       body.IsPlt,
		AppointedBy: body.AppointedBy,
		SKNumber:    body.SKNumber,
		Notes:       body.Notes,
	}
	var out *services.Assignment
	err = c.withRetry(r.Context(), func(ctx context.Context) error {
		var err error
		out, err = c.assignments.Assign(ctx, req, actorID)
		return err
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

type terminateRequest struct {
	EndDate string  `json:"end_date"`
	Reason  *string `json:"reason"`
}

func (c *OrgAPIController) Terminate(w http.ResponseWriter, r *http.Request) {
	actorID, requestID, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	var body terminateRequest
	if err := httpapi.DecodeStrict(r.Body, &body); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, string(services.KindInvalidRequest), "invalid json body", nil)
		return
	}
	end, err := parseRequiredDate(body.EndDate)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, string(services.KindInvalidRequest), "end_date is invalid", map[string]string{"field": "end_date"})
		return
	}

	req := services.TerminationRequest{AssignmentID: id, EndDate: end, Reason: body.Reason}
	var out *services.Assignment
	err = c.withRetry(r.Context(), func(ctx context.Context) error {
		var err error
		out, err = c.assignments.Terminate(ctx, req, actorID)
		return err
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type transferRequest struct {
	NewPositionID uuid.UUID  `json:"new_position_id"`
	TransferDate  string     `json:"transfer_date"`
	EndDate       string     `json:"end_date"`
	IsPlt         bool       `json:"is_plt"`
	AppointedBy   *uuid.UUID `json:"appointed_by"`
	SKNumber      *string    `json:"sk_number"`
	Notes         *string    `json:"notes"`
}

func (c *OrgAPIController) Transfer(w http.ResponseWriter, r *http.Request) {
	actorID, requestID, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	var body transferRequest
	if err := httpapi.DecodeStrict(r.Body, &body); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, string(services.KindInvalidRequest), "invalid json body", nil)
		return
	}
	transferDate, err := parseRequiredDate(body.TransferDate)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, string(services.KindInvalidRequest), "transfer_date is invalid", map[string]string{"field": "transfer_date"})
		return
	}
	end, err := parseOptionalDate(body.EndDate)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, string(services.KindInvalidRequest), "end_date is invalid", map[string]string{"field": "end_date"})
		return
	}

	req := services.TransferRequest{
		AssignmentID:  id,
		NewPositionID: body.NewPositionID,
		TransferDate:  transferDate,
		EndDate:       end,
		IsPlt:         body.IsPlt,
		AppointedBy:   body.AppointedBy,
		SKNumber:      body.SKNumber,
		Notes:         body.Notes,
	}
	var out *services.Assignment
	err = c.withRetry(r.Context(), func(ctx context.Context) error {
		var err error
		out, err = c.assignments.Transfer(ctx, req, actorID)
		return err
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *OrgAPIController) CreatePosition(w http.ResponseWriter, r *http.Request) {
	actorID, requestID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req services.CreatePositionRequest
	if err := httpapi.DecodeStrict(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, string(services.KindInvalidRequest), "invalid json body", nil)
		return
	}
	var out *services.Position
	err := c.withRetry(r.Context(), func(ctx context.Context) error {
		var err error
		out, err = c.positions.CreatePosition(ctx, req, actorID)
		return err
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

type updateHierarchyRequest struct {
	ReportsToID   *uuid.UUID `json:"reports_to_id"`
	CoordinatorID *uuid.UUID `json:"coordinator_id"`
}

func (c *OrgAPIController) UpdateHierarchy(w http.ResponseWriter, r *http.Request) {
	actorID, requestID, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	var body updateHierarchyRequest
	if err := httpapi.DecodeStrict(r.Body, &body); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, string(services.KindInvalidRequest), "invalid json body", nil)
		return
	}
	req := services.UpdateHierarchyRequest{PositionID: id, ReportsToID: body.ReportsToID, CoordinatorID: body.CoordinatorID}
	var out *services.HierarchyEdges
	err := c.withRetry(r.Context(), func(ctx context.Context) error {
		var err error
		out, err = c.positions.UpdateHierarchy(ctx, req, actorID)
		return err
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type deletePositionResponse struct {
	PositionID uuid.UUID `json:"position_id"`
	Retired    bool      `json:"retired"`
}

func (c *OrgAPIController) DeletePosition(w http.ResponseWriter, r *http.Request) {
	actorID, requestID, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	var retired bool
	err := c.withRetry(r.Context(), func(ctx context.Context) error {
		var err error
		retired, err = c.positions.DeletePosition(ctx, id, actorID)
		return err
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, deletePositionResponse{PositionID: id, Retired: retired})
}

func (c *OrgAPIController) ListHolders(w http.ResponseWriter, r *http.Request) {
	actorID, requestID, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	out, err := c.assignments.ListHolders(r.Context(), id, actorID)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type chainResponse struct {
	PositionID uuid.UUID              `json:"position_id"`
	Chain      []hierarchy.ChainEntry `json:"chain"`
}

func (c *OrgAPIController) GetReportingChain(w http.ResponseWriter, r *http.Request) {
	actorID, requestID, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	if err := c.hierarchy.Authorize(r.Context(), actorID, services.EntityHierarchy, id); err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	chain, err := c.hierarchy.GetReportingChain(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, chainResponse{PositionID: id, Chain: chain})
}

type subordinatesResponse struct {
	PositionID   uuid.UUID               `json:"position_id"`
	Subordinates []hierarchy.Subordinate `json:"subordinates"`
}

func (c *OrgAPIController) GetSubordinates(w http.ResponseWriter, r *http.Request) {
	actorID, requestID, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	if err := c.hierarchy.Authorize(r.Context(), actorID, services.EntityHierarchy, id); err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	subs, err := c.hierarchy.GetSubordinates(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	if subs == nil {
		subs = []hierarchy.Subordinate{}
	}
	writeJSON(w, http.StatusOK, subordinatesResponse{PositionID: id, Subordinates: subs})
}

func (c *OrgAPIController) ValidateHierarchy(w http.ResponseWriter, r *http.Request) {
	actorID, requestID, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := c.hierarchy.Authorize(r.Context(), actorID, services.EntityHierarchy, uuid.Nil); err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	rep, err := c.hierarchy.ValidateHierarchy(r.Context())
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// withRetry replays fn while it fails with a transaction conflict. Business
// rejections are returned on the first attempt.
func (c *OrgAPIController) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(c.retry.MaxRetries, retry.WithJitterPercent(20, retry.NewExponential(c.retry.Base)))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if services.IsRetryable(err) {
			loggerFrom(ctx).WithError(err).Warn("org.api.tx_conflict_retry")
			return retry.RetryableError(err)
		}
		return err
	})
}

func loggerFrom(ctx context.Context) *logrus.Entry {
	if l := composables.UseLogger(ctx); l != nil {
		return l
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func requireActor(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	requestID := composables.UseRequestID(r.Context())
	actorID, err := composables.UseActor(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusUnauthorized, requestID, "ActorRequired", "actor id header is required", nil)
		return uuid.Nil, requestID, false
	}
	return actorID, requestID, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, requestID, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, string(services.KindInvalidRequest), fmt.Sprintf("%s is not a valid uuid", name), map[string]string{"field": name})
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseRequiredDate(v string) (time.Time, error) {
	t, err := parseDate(v)
	if err != nil {
		return time.Time{}, err
	}
	if t.IsZero() {
		return time.Time{}, errors.New("date is required")
	}
	return t, nil
}

func parseOptionalDate(v string) (*time.Time, error) {
	t, err := parseDate(v)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}

func writeServiceError(w http.ResponseWriter, r *http.Request, requestID string, err error) {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		writeAPIError(w, svcErr.Status, requestID, string(svcErr.Code), svcErr.Message, svcErr.Meta)
		return
	}
	if services.IsRetryable(err) {
		writeAPIError(w, http.StatusServiceUnavailable, requestID, "TransactionConflict", "concurrent update, retry the request", nil)
		return
	}
	loggerFrom(r.Context()).WithFields(logrus.Fields{
		"error": err.Error(),
		"path":  r.URL.Path,
	}).Error("org.api.internal_error")
	writeAPIError(w, http.StatusInternalServerError, requestID, "Internal", "internal error", nil)
}

func writeAPIError(w http.ResponseWriter, status int, requestID, code, message string, meta map[string]string) {
	_ = httpapi.WriteError(w, status, code, message, httpapi.WithRequestID(meta, requestID))
}

func writeJSON[T any](w http.ResponseWriter, status int, payload T) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
