package fulfillment

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/ariefcatur/go-storefront-checkout/internal/catalog"
)

type downloadLink struct {
	Number int
	Title  string
	URL    string
}

var (
	bookingTmpl = template.Must(template.New("booking").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h1>Booking Confirmed</h1>
<p>Hi {{.Name}},</p>
<p>You're all set for <strong>{{.Event}}</strong> on {{.Date}}.</p>
<table>
<tr><td>Spots</td><td>{{.Seats}}</td></tr>
<tr><td>Total paid</td><td>{{.Total}}</td></tr>
{{if .SpecialRequests}}<tr><td>Special requests</td><td>{{.SpecialRequests}}</td></tr>{{end}}
</table>
<p>See you on the water.</p>
</div>`))

	albumTmpl = template.Must(template.New("album").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<p>Hi {{.Name}},</p>
<p>Thank you for purchasing {{.Album}}! Your high-quality WAV files are ready to download.</p>
<ol>
{{range .Links}}<li>{{printf "%02d" .Number}}. {{.Title}} <a href="{{.URL}}" download>Download</a></li>
{{end}}</ol>
<p>Links stay valid for a limited time. Save the files once downloaded.</p>
</div>`))

	trackTmpl = template.Must(template.New("track").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<p>Hi {{.Name}},</p>
<p>Thank you for your purchase! Your high-quality WAV file is ready to download.</p>
<p><strong>{{printf "%02d" .Link.Number}}. {{.Link.Title}}</strong></p>
<p><a href="{{.Link.URL}}" download>Download Track</a></p>
</div>`))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

func bookingConfirmationMessage(p Purchase) (Message, error) {
	in := p.Intent
	body, err := render(bookingTmpl, map[string]any{
		"Name":            displayName(in.Customer.Name),
		"Event":           eventTitle(p.Event),
		"Date":            eventDate(p.Event),
		"Seats":           in.Booking.Seats,
		"Total":           FormatMoney(in.TotalCents, in.Currency),
		"SpecialRequests": in.Booking.SpecialRequests,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      in.Customer.Email,
		Subject: "Booking Confirmed: " + eventTitle(p.Event),
		HTML:    body,
	}, nil
}

func albumDownloadMessage(p Purchase, album catalog.Album, links []downloadLink) (Message, error) {
	body, err := render(albumTmpl, map[string]any{
		"Name":  displayName(p.Intent.Customer.Name),
		"Album": album.Name,
		"Links": links,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      p.Intent.Customer.Email,
		Subject: fmt.Sprintf("Your %s is Ready to Download!", album.Name),
		HTML:    body,
	}, nil
}

func trackDownloadMessage(p Purchase, link downloadLink) (Message, error) {
	body, err := render(trackTmpl, map[string]any{
		"Name": displayName(p.Intent.Customer.Name),
		"Link": link,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      p.Intent.Customer.Email,
		Subject: fmt.Sprintf("Your Track %q is Ready to Download!", link.Title),
		HTML:    body,
	}, nil
}
