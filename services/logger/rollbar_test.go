package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/student"
)

func TestRollbarLogger(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewRollbarLogger(log.New(buf, "TEST : ", 0), core.NewTestConfig())
	logger.Enable(false)

	st := student.Student{ID: 7, Name: "Ayan"}
	logger.Warn("dues scan failed", errors.New("db down"), st)

	out := buf.String()
	assert.Contains(t, out, "WARN: dues scan failed")
	assert.Contains(t, out, "db down")
	assert.NotContains(t, out, "Ayan")

	args := logger.prepare("msg", []interface{}{st, map[string]interface{}{"k": 1}})
	assert.Equal(t, []interface{}{"msg", map[string]interface{}{"k": 1}}, args)
}
