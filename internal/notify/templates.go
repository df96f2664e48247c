package notify

import "html/template"

const dateLayout = "Monday, January 2, 2006"

type confirmationView struct {
	UserName    string
	EventTitle  string
	Date        string
	Location    string
	TicketCount int
	TotalPrice  string
}

type reminderView struct {
	UserName   string
	EventTitle string
	Date       string
	Location   string
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`
<h1>Booking Confirmed!</h1>
<p>Hi {{.UserName}},</p>
<p>Your booking for <strong>{{.EventTitle}}</strong> has been confirmed.</p>
<p><strong>Date:</strong> {{.Date}}</p>
{{if .Location}}<p><strong>Location:</strong> {{.Location}}</p>{{end}}
<p><strong>Tickets:</strong> {{.TicketCount}}</p>
<p><strong>Total Paid:</strong> ${{.TotalPrice}}</p>
<br>
<p>Please present the attached QR code at the venue.</p>
`))

var reminderTemplate = template.Must(template.New("reminder").Parse(`
<h1>Event Reminder</h1>
<p>Hi {{.UserName}},</p>
<p>This is a reminder that <strong>{{.EventTitle}}</strong> is happening tomorrow!</p>
<p><strong>Date:</strong> {{.Date}}</p>
<p><strong>Location:</strong> {{.Location}}</p>
<br>
<p>See you there!</p>
`))
