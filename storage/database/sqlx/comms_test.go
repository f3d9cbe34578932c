package sqlxrepos

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
)

func Test_tableOf(t *testing.T) {
	tests := []struct {
		name     string
		ch       comms.Channel
		wantFrom string
		wantCols []string
	}{
		{
			name:     "sms",
			ch:       comms.ChannelSMS,
			wantFrom: "FROM sms_outbox o",
			wantCols: []string{"o.to_number AS recipient", "o.sender_id", "'' AS from_email", "'' AS reply_to"},
		},
		{
			name:     "email",
			ch:       comms.ChannelEmail,
			wantFrom: "FROM email_outbox o",
			wantCols: []string{"o.to_email AS recipient", "'' AS sender_id", "o.from_email", "o.reply_to"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := tableOf(tt.ch)
			require.NoError(t, err)
			q := tbl.selectFrom()
			assert.Contains(t, q, tt.wantFrom)
			assert.Contains(t, q, "JOIN message_templates tpl ON tpl.id = o.template_id")
			for _, col := range tt.wantCols {
				assert.Contains(t, q, col)
			}
		})
	}

	t.Run("unknown channel", func(t *testing.T) {
		_, err := tableOf("fax")
		assert.Equal(t, comms.ErrUnknownChannel, errors.Cause(err))
	})
}
