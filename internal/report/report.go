// Package report turns a visit and its answers into human-readable exports:
// a plain-text summary for email and a paginated PDF for download.
package report

import (
	"fmt"
	"strings"

	"storecheck/internal/models"
)

// Line is one row of the rendered report. Indented lines are answer detail;
// heading lines start sections.
type Line struct {
	Text    string
	Heading bool
	Indent  bool
}

// Document is a visit report ready for rendering.
type Document struct {
	Title string
	Lines []Line
}

// Build assembles the report document for a visit. Answers are expected in
// template display order; section headings are emitted on change.
func Build(v models.Visit, answers []models.VisitAnswer, progressPercent int) Document {
	doc := Document{Title: fmt.Sprintf("Store Visit Report — %s", v.StoreName)}

	add := func(text string) { doc.Lines = append(doc.Lines, Line{Text: text}) }
	heading := func(text string) { doc.Lines = append(doc.Lines, Line{Text: text, Heading: true}) }
	detail := func(text string) { doc.Lines = append(doc.Lines, Line{Text: text, Indent: true}) }

	add(fmt.Sprintf("Store:     %s (%s / %s)", v.StoreName, v.RegionName, v.DistrictName))
	add(fmt.Sprintf("Evaluator: %s", v.UserName))
	add(fmt.Sprintf("Date:      %s", v.Timestamp))
	if v.ManagerName != "" {
		add(fmt.Sprintf("Manager:   %s", v.ManagerName))
	}
	add(fmt.Sprintf("Status:    %s — %d%% complete", v.State, progressPercent))
	add("")

	section := ""
	for _, a := range answers {
		if a.Section != section {
			section = a.Section
			if section != "" {
				heading(section)
			}
		}
		detail(fmt.Sprintf("%s: %s", a.Title, formatAnswer(a)))
		if a.Observation != nil && *a.Observation != "" {
			detail(fmt.Sprintf("  Note: %s", *a.Observation))
		}
	}

	plans := []struct{ label, text string }{
		{"Financial plan", v.PlanFinancial},
		{"Experience plan", v.PlanExperience},
		{"Operational plan", v.PlanOperational},
	}
	wrotePlanHeading := false
	for _, p := range plans {
		if p.text == "" {
			continue
		}
		if !wrotePlanHeading {
			add("")
			heading("Action Plans")
			wrotePlanHeading = true
		}
		detail(fmt.Sprintf("%s: %s", p.label, p.text))
	}
	if v.Comments != "" {
		add("")
		heading("Comments")
		detail(v.Comments)
	}
	return doc
}

// formatAnswer renders one answer value according to its item type.
func formatAnswer(a models.VisitAnswer) string {
	switch a.Type {
	case models.ItemBoolean:
		if a.BooleanValue == nil {
			return "-"
		}
		if *a.BooleanValue != 0 {
			return "Yes"
		}
		return "No"
	case models.ItemText:
		if a.TextValue == nil || strings.TrimSpace(*a.TextValue) == "" {
			return "-"
		}
		return *a.TextValue
	case models.ItemNumber:
		if a.NumberValue == nil {
			return "-"
		}
		return trimFloat(*a.NumberValue)
	case models.ItemPercentage:
		v := a.PercentageValue
		if v == nil {
			v = a.NumberValue
		}
		if v == nil {
			return "-"
		}
		return trimFloat(*v) + "%"
	case models.ItemPhoto:
		if a.PhotoPath == nil || *a.PhotoPath == "" {
			return "-"
		}
		return "photo: " + *a.PhotoPath
	case models.ItemStatus:
		if a.NumberValue == nil {
			return "-"
		}
		switch int(*a.NumberValue) {
		case models.TierGreen:
			return "Green"
		case models.TierYellow:
			return "Yellow"
		case models.TierRed:
			return "Red"
		}
		return trimFloat(*a.NumberValue)
	}
	return "-"
}

// trimFloat formats a float without trailing zeros: 33.50 → "33.5", 4.0 → "4".
func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// SummaryText renders the document as plain text for the email body.
func SummaryText(doc Document) string {
	var b strings.Builder
	b.WriteString(doc.Title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len(doc.Title)))
	b.WriteString("\n\n")
	for _, line := range doc.Lines {
		if line.Indent {
			b.WriteString("  ")
		}
		b.WriteString(line.Text)
		b.WriteString("\n")
		if line.Heading {
			b.WriteString(strings.Repeat("-", len(line.Text)))
			b.WriteString("\n")
		}
	}
	return b.String()
}
