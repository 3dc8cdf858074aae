package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ps2841/horpak-billing/models"
	"github.com/ps2841/horpak-billing/services"
)

type BillHandler struct {
	db      *sql.DB
	billing *services.BillingService
	pdf     *services.PDFGenerator
}

func NewBillHandler(db *sql.DB, billing *services.BillingService, pdf *services.PDFGenerator) *BillHandler {
	return &BillHandler{db: db, billing: billing, pdf: pdf}
}

// Generate computes draft bills for a period without persisting anything.
// The office reviews and saves them one by one.
func (h *BillHandler) Generate(w http.ResponseWriter, r *http.Request) {
	month, year, ok := periodVars(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msg.InvalidPeriod)
		return
	}

	bills, err := h.billing.GenerateBills(month, year)
	if err != nil {
		log.Printf("ERROR: Failed to generate bills for %d/%d: %v", month, year, err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}

	writeJSON(w, http.StatusOK, bills)
}

// ListByPeriod returns the saved bills of a period.
func (h *BillHandler) ListByPeriod(w http.ResponseWriter, r *http.Request) {
	month, year, ok := periodVars(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msg.InvalidPeriod)
		return
	}

	bills, err := h.billing.ListBills(month, year)
	if err != nil {
		log.Printf("ERROR: Failed to list bills for %d/%d: %v", month, year, err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}

	writeJSON(w, http.StatusOK, bills)
}

func (h *BillHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	bill, err := h.billing.GetBill(id)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, msg.BillNotFound)
		return
	}
	if err != nil {
		log.Printf("ERROR: Failed to get bill %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}

	writeJSON(w, http.StatusOK, bill)
}

// Save upserts one bill keyed by (room, month, year). A total that does not
// equal the sum of its line items is rejected, never corrected.
func (h *BillHandler) Save(w http.ResponseWriter, r *http.Request) {
	var bill models.Bill
	if err := json.NewDecoder(r.Body).Decode(&bill); err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}
	if !services.ValidPeriod(bill.BillMonth, bill.BillYear) {
		writeError(w, http.StatusBadRequest, msg.InvalidPeriod)
		return
	}

	id, created, err := h.billing.SaveBill(&bill)
	if err != nil {
		if errors.Is(err, services.ErrTotalMismatch) {
			writeError(w, http.StatusBadRequest, msg.TotalMismatch)
			return
		}
		log.Printf("ERROR: Failed to save bill for room %d: %v", bill.RoomID, err)
		writeError(w, http.StatusInternalServerError, msg.SaveFailed)
		return
	}

	bill.ID = id
	logAction(h.db, "save_bill", fmt.Sprintf("bill_id=%d room_id=%d period=%d/%d",
		id, bill.RoomID, bill.BillMonth, bill.BillYear), nil, r)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"id":      id,
		"created": created,
		"updated": !created,
	})
}

// MarkPaid stamps a bill paid today.
func (h *BillHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	if err := h.billing.MarkPaid(id); err != nil {
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, msg.BillNotFound)
			return
		}
		log.Printf("ERROR: Failed to mark bill %d paid: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.SaveFailed)
		return
	}

	logAction(h.db, "mark_paid", fmt.Sprintf("bill_id=%d", id), nil, r)
	writeJSON(w, http.StatusOK, map[string]string{"message": "paid"})
}

// InvoicePDF renders the bill's printable invoice and streams it back.
func (h *BillHandler) InvoicePDF(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	bill, err := h.billing.GetBill(id)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, msg.BillNotFound)
		return
	}
	if err != nil {
		log.Printf("ERROR: Failed to get bill %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}

	path, err := h.pdf.GenerateInvoicePDF(bill)
	if err != nil {
		log.Printf("ERROR: Failed to render invoice for bill %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`inline; filename="invoice-%s-%d-%d.pdf"`, bill.RoomNumber, bill.BillMonth, bill.BillYear))
	http.ServeFile(w, r, path)
}
