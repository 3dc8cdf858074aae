package services

// Messages contains every text shown to the office staff. Internal errors
// are logged in English; clients only ever see these strings.
type Messages struct {
	FloorNotFound    string
	RoomNotFound     string
	TenantNotFound   string
	BillNotFound     string
	ReadingNotFound  string
	SourceNotFound   string

	DuplicateRoomNumber string
	RoomHasActiveTenant string
	RoomHasBills        string
	FloorHasRooms       string
	InvalidCalcType     string
	InvalidPeriod       string
	InvalidRequest      string
	TotalMismatch       string

	SaveFailed   string
	LoadFailed   string
	DeleteFailed string

	InvoiceTitle     string
	InvoiceRoomRent  string
	InvoiceWater     string
	InvoiceElectric  string
	InvoiceTrash     string
	InvoiceOther     string
	InvoiceTotal     string
	InvoicePeriod    string
	InvoiceRoom      string
	InvoiceTenant    string
	InvoiceUnits     string
	InvoiceRate      string
	InvoiceScanToPay string
	InvoicePaid      string
	InvoiceUnpaid    string
}

// GetMessages returns the catalog for the requested language. Thai is the
// default, matching the building office this system runs in.
func GetMessages(language string) Messages {
	switch language {
	case "en":
		return Messages{
			FloorNotFound:   "Floor not found",
			RoomNotFound:    "Room not found",
			TenantNotFound:  "Tenant not found",
			BillNotFound:    "Bill not found",
			ReadingNotFound: "Meter reading not found",
			SourceNotFound:  "Meter source not found",

			DuplicateRoomNumber: "Room number already exists",
			RoomHasActiveTenant: "Room already has an active tenant",
			RoomHasBills:        "Room still has bills",
			FloorHasRooms:       "Floor still has rooms",
			InvalidCalcType:     "Calculation type must be 'unit' or 'fixed'",
			InvalidPeriod:       "Invalid month or year",
			InvalidRequest:      "Invalid request",
			TotalMismatch:       "Total does not match the sum of line items",

			SaveFailed:   "Unable to save data",
			LoadFailed:   "Unable to load data",
			DeleteFailed: "Unable to delete data",

			InvoiceTitle:     "Rent Invoice",
			InvoiceRoomRent:  "Room rent",
			InvoiceWater:     "Water",
			InvoiceElectric:  "Electricity",
			InvoiceTrash:     "Trash collection",
			InvoiceOther:     "Other",
			InvoiceTotal:     "Total",
			InvoicePeriod:    "Period",
			InvoiceRoom:      "Room",
			InvoiceTenant:    "Tenant",
			InvoiceUnits:     "units",
			InvoiceRate:      "rate",
			InvoiceScanToPay: "Scan to pay (PromptPay)",
			InvoicePaid:      "PAID",
			InvoiceUnpaid:    "UNPAID",
		}
	default: // Thai
		return Messages{
			FloorNotFound:   "ไม่พบชั้นนี้",
			RoomNotFound:    "ไม่พบห้องนี้",
			TenantNotFound:  "ไม่พบผู้เช่านี้",
			BillNotFound:    "ไม่พบบิลนี้",
			ReadingNotFound: "ไม่พบข้อมูลมิเตอร์",
			SourceNotFound:  "ไม่พบมิเตอร์อัตโนมัติ",

			DuplicateRoomNumber: "หมายเลขห้องซ้ำ",
			RoomHasActiveTenant: "ห้องนี้มีผู้เช่าอยู่แล้ว",
			RoomHasBills:        "ห้องนี้มีบิลอยู่ ไม่สามารถลบได้",
			FloorHasRooms:       "ชั้นนี้ยังมีห้องอยู่ ไม่สามารถลบได้",
			InvalidCalcType:     "ประเภทการคิดค่าน้ำ/ค่าไฟต้องเป็น unit หรือ fixed",
			InvalidPeriod:       "เดือนหรือปีไม่ถูกต้อง",
			InvalidRequest:      "ข้อมูลไม่ถูกต้อง",
			TotalMismatch:       "ยอดรวมไม่ตรงกับผลรวมของรายการ",

			SaveFailed:   "ไม่สามารถบันทึกข้อมูลได้",
			LoadFailed:   "ไม่สามารถดึงข้อมูลได้",
			DeleteFailed: "ไม่สามารถลบข้อมูลได้",

			InvoiceTitle:     "ใบแจ้งค่าเช่า",
			InvoiceRoomRent:  "ค่าเช่าห้อง",
			InvoiceWater:     "ค่าน้ำ",
			InvoiceElectric:  "ค่าไฟ",
			InvoiceTrash:     "ค่าขยะ",
			InvoiceOther:     "อื่น ๆ",
			InvoiceTotal:     "รวมทั้งหมด",
			InvoicePeriod:    "ประจำเดือน",
			InvoiceRoom:      "ห้อง",
			InvoiceTenant:    "ผู้เช่า",
			InvoiceUnits:     "หน่วย",
			InvoiceRate:      "หน่วยละ",
			InvoiceScanToPay: "สแกนจ่ายผ่าน PromptPay",
			InvoicePaid:      "ชำระแล้ว",
			InvoiceUnpaid:    "ยังไม่ชำระ",
		}
	}
}
