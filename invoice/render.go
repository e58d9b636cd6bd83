package invoice

import (
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/types"
)

const (
	monthLayout = "January 2006"
	dateLayout  = "02-01-2006"
)

// Render lays out s. The late fee line appears only when a fee was charged.
func Render(s Snapshot) Document {
	month := s.Month.UTC().Format(monthLayout)

	doc := Document{
		Title: "RENT INVOICE",
		Header: []string{
			"Hostel: " + s.Hostel,
			"Student: " + s.Student,
			"Month: " + month,
			"Date: " + s.IssuedAt.UTC().Format(dateLayout),
		},
		Columns: [2]string{"Description", "Amount"},
		Items: []LineItem{
			{Type: LineRent, Description: "Monthly Rent for " + month, Amount: s.Amount},
		},
		Total:  LineItem{Type: LineTotal, Description: "Total", Amount: s.Total()},
		Footer: "Status: " + statusLabel(s.Status),
	}
	if s.LateFee.IsPositive() {
		doc.Items = append(doc.Items, LineItem{Type: LineLateFee, Description: "Late Fee", Amount: s.LateFee})
	}
	return doc
}

// Lines flattens d to text, one row per line, columns joined by " | ".
func (d Document) Lines() []string {
	lines := make([]string, 0, len(d.Header)+len(d.Items)+4)
	lines = append(lines, d.Title)
	lines = append(lines, d.Header...)
	lines = append(lines, d.Columns[0]+" | "+d.Columns[1])
	for _, it := range d.Items {
		lines = append(lines, it.Description+" | "+FormatAmount(it.Amount))
	}
	lines = append(lines, d.Total.Description+" | "+FormatAmount(d.Total.Amount))
	return append(lines, d.Footer)
}

// FormatAmount prints m as "INR 5200.00".
func FormatAmount(m types.Money) string {
	return m.Code() + " " + m.FormatMajor()
}

func statusLabel(s rent.Status) string {
	switch s {
	case rent.StatusPaid:
		return "Paid"
	case rent.StatusUnpaid:
		return "Unpaid"
	}
	return string(s)
}
