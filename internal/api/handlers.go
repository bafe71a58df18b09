/**
 * @description
 * This file contains the HTTP handlers for the ledger service's API
 * endpoints. Handlers parse incoming requests, call the application service
 * and map the service's typed failures onto HTTP status codes.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Service logic, models, errors.
 */
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NikolaiGurianov/BankingApp/internal/app"
	"github.com/NikolaiGurianov/BankingApp/internal/domain"
	"github.com/NikolaiGurianov/BankingApp/internal/store"
)

const dateLayout = "2006-01-02"

// Handlers holds the application service that the HTTP handlers use.
type Handlers struct {
	service *app.Service
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service *app.Service) *Handlers {
	return &Handlers{service: service}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the service's typed failures onto HTTP statuses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, store.ErrSameAccount):
		h.writeError(w, http.StatusBadRequest, "sender and receiver cannot be the same account")
	case errors.Is(err, app.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, "invalid login or password")
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, store.ErrSenderNotFound):
		h.writeError(w, http.StatusNotFound, "sender not found")
	case errors.Is(err, store.ErrReceiverNotFound):
		h.writeError(w, http.StatusNotFound, "receiver not found")
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusConflict, "insufficient funds on the sender's account")
	case errors.Is(err, store.ErrContactTaken):
		h.writeError(w, http.StatusConflict, "this contact value is already registered")
	case errors.Is(err, store.ErrLastContact):
		h.writeError(w, http.StatusConflict, "an account must keep at least one contact handle of this kind")
	case errors.Is(err, store.ErrLoginTaken):
		h.writeError(w, http.StatusConflict, "an account with this login already exists")
	case errors.Is(err, app.ErrTransferRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "too many transfers; slow down")
	default:
		log.Printf("level=error component=api msg=\"internal error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type registerPayload struct {
	FullName        string          `json:"full_name"`
	BirthDate       string          `json:"birth_date"`
	Login           string          `json:"login"`
	Password        string          `json:"password"`
	ConfirmPassword string          `json:"confirm_password"`
	StartDeposit    decimal.Decimal `json:"start_deposit"`
	Phone           string          `json:"phone"`
	Email           string          `json:"email"`
}

// RegisterHandler handles new account registration.
func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	birthDate, err := time.Parse(dateLayout, payload.BirthDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "birth_date must be formatted as YYYY-MM-DD")
		return
	}

	account, err := h.service.Register(r.Context(), domain.RegisterRequest{
		FullName:        payload.FullName,
		BirthDate:       birthDate,
		Login:           payload.Login,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
		StartDeposit:    payload.StartDeposit,
		Phone:           payload.Phone,
		Email:           payload.Email,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, account)
}

type loginPayload struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginHandler exchanges credentials for a bearer token.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.service.Login(r.Context(), payload.Login, payload.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// TransferHandler moves money from the authenticated account to the receiver
// and returns the sender's post-transfer state.
func (h *Handlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	senderID, ok := AccountIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing authenticated account")
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sender, err := h.service.Transfer(r.Context(), senderID, req.ReceiverID, req.Amount)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, sender)
}

// ContactUpdateHandler applies one tagged contact mutation (add, replace or
// remove) to the account in the path.
func (h *Handlers) ContactUpdateHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var req domain.ContactUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	contacts, err := h.service.UpdateContactInfo(r.Context(), accountID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, contacts)
}

// GetAccountHandler returns one account by id.
func (h *Handlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, account)
}

// GetContactsHandler lists the contact handles of one account.
func (h *Handlers) GetContactsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	contacts, err := h.service.GetContacts(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, contacts)
}

// SearchHandler runs the read-only account search with optional filters and
// pagination.
func (h *Handlers) SearchHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var birthDate *time.Time
	if raw := query.Get("birth_date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "birth_date must be formatted as YYYY-MM-DD")
			return
		}
		birthDate = &parsed
	}

	from, _ := strconv.Atoi(query.Get("from"))
	size, _ := strconv.Atoi(query.Get("size"))

	accounts, err := h.service.Search(r.Context(), birthDate,
		query.Get("phone"), query.Get("full_name"), query.Get("email"), from, size)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}

	h.writeJSON(w, http.StatusOK, accounts)
}
