package addressbook

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/database"
	"github.com/snarg/call-engine/internal/web"
)

// Handler serves the address-book HTTP surface: contact CRUD, on-call
// resolution, and CSV import/export.
type Handler struct {
	db  *database.DB
	log zerolog.Logger
}

func NewHandler(db *database.DB, log zerolog.Logger) *Handler {
	return &Handler{db: db, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/contact_add", h.AddContact)
	r.Put("/contact_modify/{id}", h.ModifyContact)
	r.Post("/contact_delete", h.DeleteContacts)
	r.Get("/on_call_contact", h.OnCallContact)
	r.Get("/on_call_contacts", h.OnCallContacts)
	r.Get("/contacts_export_csv", h.ExportCSV)
	r.Post("/contacts_import_csv", h.ImportCSV)
}

type contactPayload struct {
	Name         string          `json:"name"`
	Surname      string          `json:"surname"`
	Address      string          `json:"address"`
	ZipCode      string          `json:"zip_code"`
	City         string          `json:"city"`
	State        string          `json:"state"`
	Country      string          `json:"country"`
	PhoneNumber  string          `json:"phone_number"`
	Availability json.RawMessage `json:"on_call_availability"`
	Enabled      *bool           `json:"enabled"`
	Annotations  string          `json:"annotations"`
}

func (p *contactPayload) toContact() *database.Contact {
	avail := p.Availability
	if len(avail) == 0 {
		avail = json.RawMessage("[]")
	}
	enabled := false
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	return &database.Contact{
		Name: p.Name, Surname: p.Surname, Address: p.Address, ZipCode: p.ZipCode,
		City: p.City, State: p.State, Country: p.Country, PhoneNumber: p.PhoneNumber,
		Availability: avail, Enabled: enabled, Annotations: p.Annotations,
	}
}

func (h *Handler) AddContact(w http.ResponseWriter, r *http.Request) {
	var p contactPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if p.Name == "" || p.PhoneNumber == "" || p.Availability == nil || p.Enabled == nil {
		web.WriteError(w, http.StatusBadRequest, "missing required fields: name, phone_number, on_call_availability, enabled")
		return
	}
	if !json.Valid(p.Availability) {
		web.WriteError(w, http.StatusBadRequest, "on_call_availability is not valid JSON")
		return
	}

	id, err := h.db.InsertContact(r.Context(), p.toContact())
	if err != nil {
		h.log.Error().Err(err).Msg("error adding contact")
		web.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	web.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) ModifyContact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		web.WriteError(w, http.StatusBadRequest, "missing contact id")
		return
	}
	var p contactPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	existing, err := h.db.GetContact(r.Context(), id)
	if err != nil {
		web.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil {
		web.WriteJSON(w, http.StatusOK, map[string]int{"updated": 0})
		return
	}

	// Merge: absent payload fields keep their stored value.
	c := *existing
	if p.Name != "" {
		c.Name = p.Name
	}
	if p.Surname != "" {
		c.Surname = p.Surname
	}
	if p.Address != "" {
		c.Address = p.Address
	}
	if p.ZipCode != "" {
		c.ZipCode = p.ZipCode
	}
	if p.City != "" {
		c.City = p.City
	}
	if p.State != "" {
		c.State = p.State
	}
	if p.Country != "" {
		c.Country = p.Country
	}
	if p.PhoneNumber != "" {
		c.PhoneNumber = p.PhoneNumber
	}
	if p.Availability != nil {
		if !json.Valid(p.Availability) {
			web.WriteError(w, http.StatusBadRequest, "on_call_availability is not valid JSON")
			return
		}
		c.Availability = p.Availability
	}
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.Annotations != "" {
		c.Annotations = p.Annotations
	}

	n, err := h.db.UpdateContact(r.Context(), &c)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("error modifying contact")
		web.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *Handler) DeleteContacts(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	n, err := h.db.DeleteContacts(r.Context(), payload.IDs)
	if err != nil {
		web.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// OnCallContact returns the current primary on-call contact, or 404 when
// nobody is on call right now.
func (h *Handler) OnCallContact(w http.ResponseWriter, r *http.Request) {
	roster, err := h.roster(r)
	if err != nil {
		web.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(roster) == 0 {
		web.WriteError(w, http.StatusNotFound, "no contact is on call")
		return
	}
	web.WriteJSON(w, http.StatusOK, roster[0])
}

// OnCallContacts returns the full escalation-ordered roster.
func (h *Handler) OnCallContacts(w http.ResponseWriter, r *http.Request) {
	roster, err := h.roster(r)
	if err != nil {
		web.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"contacts": roster})
}

func (h *Handler) roster(r *http.Request) ([]OnCallContact, error) {
	contacts, err := h.db.EnabledContacts(r.Context())
	if err != nil {
		return nil, err
	}
	roster := Roster(contacts, time.Now().UTC())
	if roster == nil {
		roster = []OnCallContact{}
	}
	return roster, nil
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename=address_book_export.csv`)
	if err := ExportCSV(r.Context(), h.db, w); err != nil {
		h.log.Error().Err(err).Msg("error exporting contacts CSV")
	}
}

func (h *Handler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		f, _, err := r.FormFile("file")
		if err != nil {
			web.WriteError(w, http.StatusBadRequest, "no file field provided")
			return
		}
		defer f.Close()
		body = f
	}

	summary, err := ImportCSV(r.Context(), h.db, body)
	if err != nil {
		web.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	web.WriteJSON(w, http.StatusOK, summary)
}
