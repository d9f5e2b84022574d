// Package render holds transport-neutral rendering directives.
package render

// Button is an inline button: either callback Data or a URL.
type Button struct {
	Text string
	Data string
	URL  string
}

// Reply tells the transport what to deliver.
type Reply struct {
	Text string
	// Inline keyboard rows attached to the message.
	Inline [][]Button
	// Menu replaces the persistent reply keyboard when non-nil.
	Menu        [][]string
	Placeholder string
	// Photo, when set, is sent as an image with Text as caption.
	Photo []byte
	// Edit asks the transport to edit the message the callback came from.
	Edit bool
}

// Empty reports whether there is nothing to send.
func (r Reply) Empty() bool {
	return r.Text == "" && len(r.Photo) == 0
}

// Row builds one keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// Callback builds a callback button.
func Callback(text, data string) Button {
	return Button{Text: text, Data: data}
}

// Link builds a URL button.
func Link(text, url string) Button {
	return Button{Text: text, URL: url}
}
