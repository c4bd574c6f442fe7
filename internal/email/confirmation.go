package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/Domenick1991/flightmanager/internal/domain"
)

// ConfirmationLink builds {endpoint}?id=1,2,3&token=T.
func ConfirmationLink(endpoint string, ids []int64, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("confirmation endpoint: %w", err)
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	q := u.Query()
	q.Set("id", strings.Join(parts, ","))
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type ConfirmationData struct {
	Passengers  []domain.Passenger
	Flight      domain.Flight
	TicketClass domain.TicketClass
	Nationality string
	Link        string
}

func (d ConfirmationData) Duration() string {
	dur := d.Flight.Duration().Round(time.Minute)
	return fmt.Sprintf("%dh %02dm", int(dur.Hours()), int(dur.Minutes())%60)
}

const confirmationHTML = `<h2>Confirm your reservation</h2>
<p>Flight {{.Flight.FromLocation}} &rarr; {{.Flight.ToLocation}}</p>
<ul>
  <li>Departure: {{.Flight.DepartureTime.Format "2006-01-02 15:04"}}</li>
  <li>Arrival: {{.Flight.ArrivalTime.Format "2006-01-02 15:04"}}</li>
  <li>Duration: {{.Duration}}</li>
  <li>Aircraft: {{.Flight.AircraftType}} {{.Flight.AircraftNumber}}</li>
  <li>Class: {{.TicketClass}}</li>
</ul>
<p>Passengers:</p>
<ul>
{{- range .Passengers}}
  <li>{{.FullName}} ({{.IdentityNumber}})</li>
{{- end}}
</ul>
<p><a href="{{.Link}}">Confirm reservation</a></p>
<p>Unconfirmed reservations are removed automatically.</p>
`

const confirmationText = `Confirm your reservation for flight {{.Flight.FromLocation}} -> {{.Flight.ToLocation}}
Departure: {{.Flight.DepartureTime.Format "2006-01-02 15:04"}}, duration {{.Duration}}, class {{.TicketClass}}
{{range .Passengers}}- {{.FullName}}
{{end}}
Open {{.Link}} to confirm.
`

var (
	confirmationHTMLTmpl = template.Must(template.New("confirmation.html").Parse(confirmationHTML))
	confirmationTextTmpl = texttemplate.Must(texttemplate.New("confirmation.txt").Parse(confirmationText))
)

// ConfirmationMessage renders the confirmation email for one or more passengers of a booking.
func ConfirmationMessage(to, toName string, data ConfirmationData) (Message, error) {
	var html, text bytes.Buffer
	if err := confirmationHTMLTmpl.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render confirmation html: %w", err)
	}
	if err := confirmationTextTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render confirmation text: %w", err)
	}
	return Message{
		To:      to,
		ToName:  toName,
		Subject: fmt.Sprintf("Confirm your reservation %s - %s", data.Flight.FromLocation, data.Flight.ToLocation),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
