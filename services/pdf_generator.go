package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/ps2841/horpak-billing/models"
)

var thaiMonths = []string{
	"มกราคม", "กุมภาพันธ์", "มีนาคม", "เมษายน", "พฤษภาคม", "มิถุนายน",
	"กรกฎาคม", "สิงหาคม", "กันยายน", "ตุลาคม", "พฤศจิกายน", "ธันวาคม",
}

var englishMonths = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// PDFGenerator renders printable invoices. With a Thai TTF configured the
// invoice is rendered in Thai; the built-in core fonts cannot encode Thai,
// so without one it falls back to English labels.
type PDFGenerator struct {
	invoiceDir  string
	promptPayID string
	fontPath    string
}

func NewPDFGenerator(invoiceDir, promptPayID, fontPath string) *PDFGenerator {
	return &PDFGenerator{
		invoiceDir:  invoiceDir,
		promptPayID: promptPayID,
		fontPath:    fontPath,
	}
}

// GenerateInvoicePDF writes the invoice for one bill and returns the file
// path.
func (pg *PDFGenerator) GenerateInvoicePDF(bill *models.Bill) (string, error) {
	if err := os.MkdirAll(pg.invoiceDir, 0755); err != nil {
		return "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	font := "Arial"
	msg := GetMessages("en")
	monthName := englishMonths[bill.BillMonth-1]
	if pg.fontPath != "" {
		pdf.AddUTF8Font("thai", "", pg.fontPath)
		pdf.AddUTF8Font("thai", "B", pg.fontPath)
		font = "thai"
		msg = GetMessages("th")
		monthName = thaiMonths[bill.BillMonth-1]
	}

	// Header
	pdf.SetFont(font, "B", 22)
	pdf.SetTextColor(0, 123, 255)
	pdf.Cell(0, 10, msg.InvoiceTitle)
	pdf.Ln(9)

	pdf.SetFont(font, "", 11)
	pdf.SetTextColor(100, 100, 100)
	pdf.Cell(0, 6, fmt.Sprintf("%s %s %d", msg.InvoicePeriod, monthName, bill.BillYear))
	pdf.Ln(10)

	// Paid / unpaid badge
	status := msg.InvoiceUnpaid
	pdf.SetFillColor(248, 215, 218)
	pdf.SetTextColor(114, 28, 36)
	if bill.IsPaid {
		status = msg.InvoicePaid
		pdf.SetFillColor(212, 237, 218)
		pdf.SetTextColor(21, 87, 36)
	}
	pdf.SetFont(font, "B", 9)
	pdf.CellFormat(30, 6, status, "", 0, "C", true, 0, "")
	pdf.Ln(12)

	// Room and tenant
	pdf.SetFont(font, "B", 11)
	pdf.SetTextColor(0, 0, 0)
	pdf.Cell(0, 6, fmt.Sprintf("%s %s (%s)", msg.InvoiceRoom, bill.RoomNumber, bill.FloorName))
	pdf.Ln(6)
	if bill.TenantName != "" {
		pdf.SetFont(font, "", 10)
		tenant := bill.TenantName
		if bill.TenantPhone != "" {
			tenant += "  " + bill.TenantPhone
		}
		pdf.Cell(0, 5, fmt.Sprintf("%s: %s", msg.InvoiceTenant, tenant))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	// Line items
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont(font, "B", 10)
	pdf.CellFormat(130, 8, "  "+msg.InvoiceTitle, "B", 0, "L", true, 0, "")
	pdf.CellFormat(50, 8, msg.InvoiceTotal+"  ", "B", 1, "R", true, 0, "")

	pdf.SetFont(font, "", 10)
	pg.lineItem(pdf, msg.InvoiceRoomRent, "", bill.RoomPrice)

	waterDetail := ""
	if bill.WaterRate != nil {
		waterDetail = fmt.Sprintf("%.0f %s x %.2f", bill.WaterUnits, msg.InvoiceUnits, *bill.WaterRate)
	}
	pg.lineItem(pdf, msg.InvoiceWater, waterDetail, bill.WaterAmount)

	electricDetail := ""
	if bill.ElectricRate != nil {
		electricDetail = fmt.Sprintf("%.0f %s x %.2f", bill.ElectricUnits, msg.InvoiceUnits, *bill.ElectricRate)
	}
	pg.lineItem(pdf, msg.InvoiceElectric, electricDetail, bill.ElectricAmount)

	if bill.TrashFee > 0 {
		pg.lineItem(pdf, msg.InvoiceTrash, "", bill.TrashFee)
	}
	if bill.OtherAmount != 0 {
		desc := msg.InvoiceOther
		if bill.OtherDescription != "" {
			desc = bill.OtherDescription
		}
		pg.lineItem(pdf, desc, "", bill.OtherAmount)
	}

	pdf.SetFont(font, "B", 12)
	pdf.SetFillColor(230, 240, 255)
	pdf.CellFormat(130, 10, "  "+msg.InvoiceTotal, "T", 0, "L", true, 0, "")
	pdf.CellFormat(50, 10, fmt.Sprintf("%.2f  ", bill.TotalAmount), "T", 1, "R", true, 0, "")
	pdf.Ln(10)

	// PromptPay QR, only when an account is configured and the bill is open
	if pg.promptPayID != "" && !bill.IsPaid {
		payload := BuildPromptPayPayload(pg.promptPayID, bill.TotalAmount)
		qrFile := filepath.Join(pg.invoiceDir, fmt.Sprintf("qr-%d.png", bill.ID))
		if err := qrcode.WriteFile(payload, qrcode.Medium, 280, qrFile); err == nil {
			pdf.SetFont(font, "", 9)
			pdf.SetTextColor(100, 100, 100)
			pdf.Cell(0, 5, msg.InvoiceScanToPay)
			pdf.Ln(6)
			y := pdf.GetY()
			pdf.ImageOptions(qrFile, 15, y, 45, 45, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
			os.Remove(qrFile)
		}
	}

	filename := fmt.Sprintf("invoice-%s-%02d-%d.pdf", bill.RoomNumber, bill.BillMonth, bill.BillYear)
	outPath := filepath.Join(pg.invoiceDir, filename)
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

func (pg *PDFGenerator) lineItem(pdf *gofpdf.Fpdf, label, detail string, amount float64) {
	text := "  " + label
	if detail != "" {
		text += "  (" + detail + ")"
	}
	pdf.CellFormat(130, 8, text, "", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, fmt.Sprintf("%.2f  ", amount), "", 1, "R", false, 0, "")
}

// BuildPromptPayPayload assembles the EMVCo TLV string for a Thai PromptPay
// dynamic QR: payment to a phone number or national id, with the bill total
// baked in.
func BuildPromptPayPayload(target string, amount float64) string {
	var b strings.Builder

	b.WriteString(tlv("00", "01"))   // payload format indicator
	b.WriteString(tlv("01", "12"))   // dynamic QR (amount included)

	// Merchant account: PromptPay AID plus phone or national id
	var account strings.Builder
	account.WriteString(tlv("00", "A000000677010111"))
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, target)
	if len(digits) == 13 {
		account.WriteString(tlv("02", digits))
	} else {
		// phone number: country code 66, drop the leading zero
		account.WriteString(tlv("01", "0066"+strings.TrimPrefix(digits, "0")))
	}
	b.WriteString(tlv("29", account.String()))

	b.WriteString(tlv("53", "764")) // THB
	if amount > 0 {
		b.WriteString(tlv("54", fmt.Sprintf("%.2f", amount)))
	}
	b.WriteString(tlv("58", "TH"))

	payload := b.String() + "6304"
	return payload + fmt.Sprintf("%04X", crc16CCITT([]byte(payload)))
}

func tlv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// crc16CCITT is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF), the checksum
// EMVCo QR payloads end with.
func crc16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
