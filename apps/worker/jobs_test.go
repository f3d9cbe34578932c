package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/billing"
	"github.com/Syed-Nuhad/school-web-sub000/tests"
)

func Test_newJobs(t *testing.T) {
	app := testutil.NewApp(t, nil)
	jobs := newJobs(app.Conf, app.Svcs, core.NewNopLogger())

	names := make([]string, 0, len(jobs))
	for _, job := range jobs {
		names = append(names, job.Name)
		assert.Greater(t, int64(job.Interval), int64(0), job.Name)
	}
	assert.Equal(t, []string{"outbox-sms", "outbox-email", "dues-scan"}, names)
}

func Test_duesScanAndOutboxJobs(t *testing.T) {
	app := testutil.NewApp(t, nil)
	testutil.SeedTemplates(t, app)
	ctx := context.Background()
	logger := core.NewNopLogger()

	st := testutil.CreateStudent(t, app, "Amina", "amina@test.cd", "")
	_, err := app.Svcs.Billing.CreateCustomInvoice(ctx, st.ID, "Books", "35", timePtr(core.Today().AddDate(0, 0, -1)))
	require.NoError(t, err)

	scan := duesScanJob(app.Svcs, logger)
	sendEmail := outboxJob(app.Svcs.Comms, "email", 10, logger)

	require.NoError(t, scan(ctx))
	require.NoError(t, sendEmail(ctx))
	sent := len(app.Email.Sent())
	assert.Greater(t, sent, 0)

	// the recipient was just notified: the next scan queues nothing
	require.NoError(t, scan(ctx))
	require.NoError(t, sendEmail(ctx))
	assert.Equal(t, sent, len(app.Email.Sent()))

	invs, err := app.Svcs.Billing.FilterInvoices(ctx, billing.InvoiceFilter{StudentID: st.ID, Outstanding: true})
	require.NoError(t, err)
	assert.NotEmpty(t, invs)
}

func timePtr(t time.Time) *time.Time { return &t }
