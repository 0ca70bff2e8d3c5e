package emailsvc

import (
	"bytes"
	"log"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wwu-chemlab/chemlab/assets"
	"github.com/wwu-chemlab/chemlab/core"
	logsvc "github.com/wwu-chemlab/chemlab/services/logger"
)

func testConf() *core.Config {
	conf := &core.Config{AppName: "ChemLab", FrontendBaseURL: "http://chemlab.test", TestMode: true}
	conf.DefaultFromEmail = mail.Address{Name: "ChemLab", Address: "noreply@chemlab.test"}
	return conf
}

func TestConsoleServiceMock(t *testing.T) {
	conf := testConf()
	logger := logsvc.NewRollbarLogger(log.New(new(bytes.Buffer), "", 0), conf)
	core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, logger, true)
	svc := NewConsoleServiceMock(logger, conf)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Jane Doe", Address: "jane.doe@wallawalla.edu"}},
			Subject:      "Welcome to ChemLab",
			TemplateName: "welcome",
			TemplateData: map[string]string{"Name": "Jane Doe", "Username": "jane.doe"},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "x@wallawalla.edu"}}, Subject: "no content"},
	)

	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "Hi Jane Doe,")
	assert.Contains(t, sent[0].TextContent, `"jane.doe"`)
	assert.Contains(t, sent[0].TextContent, "http://chemlab.test")
	assert.Contains(t, sent[0].HTMLContent, "Jane Doe")

	svc.Reset()
	assert.Empty(t, svc.Sent())
}

func TestConsoleService_send(t *testing.T) {
	conf := testConf()
	var out bytes.Buffer
	svc := &consoleService{
		defaultFromEmail: conf.DefaultFromEmail,
		subjPrefix:       "[ChemLab] ",
		out:              &out,
	}

	msg := core.EmailMessage{
		To:          []mail.Address{{Address: "prof@wallawalla.edu"}},
		Subject:     "Titration results",
		TextContent: "see attached",
	}
	require.NoError(t, msg.Attach(strings.NewReader("student,pH\r\n1234567,7\r\n"), "titration.csv", "text/csv"))
	require.NoError(t, svc.send(msg))

	body := out.String()
	assert.Contains(t, body, `From: "ChemLab" <noreply@chemlab.test>`)
	assert.Contains(t, body, "Subject: [ChemLab] Titration results")
	assert.Contains(t, body, "Content-Type: multipart/mixed; boundary=")
	assert.Contains(t, body, `attachment; filename="titration.csv"`)
	assert.Contains(t, body, msg.Attachments[0].Content.String())
	assert.NotContains(t, body, "CC:")
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(nil, testConf()).(*sendgridService)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Jane", Address: "jane@wallawalla.edu"}},
		Cc:          []mail.Address{{Address: "prof@wallawalla.edu"}},
		Subject:     "Password Reset",
		TextContent: "reset it",
	})

	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[ChemLab] Password Reset", m.Personalizations[0].Subject)
	assert.Equal(t, "jane@wallawalla.edu", m.Personalizations[0].To[0].Address)
	assert.Equal(t, "prof@wallawalla.edu", m.Personalizations[0].CC[0].Address)
	assert.Equal(t, "noreply@chemlab.test", m.From.Address)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
