// Package theme maps the dark-mode flag to the stylesheet injected into every page.
package theme

import "html/template"

const darkCSS = `
body, .sidebar, .content, header {
	background-color: #0e1117 !important;
	color: #fafafa !important;
}
button, .button {
	background-color: #21262d !important;
	color: #fafafa !important;
	border: none !important;
	border-radius: 6px !important;
}
input, textarea {
	background-color: #21262d !important;
	color: #fafafa !important;
	border: 1px solid #444c56 !important;
	border-radius: 4px !important;
}
.dropzone {
	background-color: #21262d !important;
	border: 1px dashed #444c56 !important;
	color: #fafafa !important;
}
`

const lightCSS = `
body, .sidebar, .content, header {
	background-color: white !important;
	color: black !important;
}
button, .button {
	background-color: #e0e0e0 !important;
	color: black !important;
	border-radius: 6px !important;
}
input, textarea {
	background-color: white !important;
	color: black !important;
	border: 1px solid #ccc !important;
	border-radius: 4px !important;
}
.dropzone {
	border: 1px dashed #ccc !important;
}
`

// Apply returns the style directive for the given flag.
func Apply(darkMode bool) template.CSS {
	if darkMode {
		return template.CSS(darkCSS)
	}
	return template.CSS(lightCSS)
}
