package dto

import "html/template"

// Flash kinds rendered on a page.
const (
	FlashInfo    = "info"
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot message shown above the page content.
type Flash struct {
	Kind    string
	Message string
	Code    string // rendered as inline code after Message
}

// DetectionRow is one line of the detection table.
type DetectionRow struct {
	Label      string
	Confidence string
	Box        string
}

// ResultView holds the images of the last run as data URIs.
type ResultView struct {
	InputURI   template.URL
	OutputURI  template.URL
	Detections []DetectionRow
}

// PageData is the template payload of the main and login pages.
type PageData struct {
	Title      string
	Style      template.CSS
	DarkMode   bool
	User       string
	Confidence float64
	IoU        float64
	Flashes    []Flash
	Result     *ResultView
	Processing string
}
