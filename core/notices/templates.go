package notices

import (
	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
)

const (
	defaultSMSBody = "Dear {{.student_name}}, your dues of {{.amount_due}} for {{.period}} are payable by {{.due_date}}."

	defaultEmailSubject = "Dues reminder for {{.period}}"
	defaultEmailText    = `Dear {{.student_name}},

This is a reminder that {{.amount_due}} is due for {{.period}} (due date: {{.due_date}}).

Thank you.`
	defaultEmailHTML = `<p>Dear {{.student_name}},</p>
<p>This is a reminder that <strong>{{.amount_due}}</strong> is due for {{.period}} (due date: {{.due_date}}).</p>
<p>Thank you.</p>`
)

// DefaultTemplates are the dues notice templates seeded by the admin CLI.
func DefaultTemplates(conf *core.Config) []comms.Template {
	return []comms.Template{
		{
			Slug:     conf.Dues.SMSTemplate,
			Kind:     comms.ChannelSMS,
			BodyText: defaultSMSBody,
			IsActive: true,
		},
		{
			Slug:     conf.Dues.EmailTemplate,
			Kind:     comms.ChannelEmail,
			Subject:  defaultEmailSubject,
			BodyText: defaultEmailText,
			BodyHTML: defaultEmailHTML,
			IsActive: true,
		},
	}
}
