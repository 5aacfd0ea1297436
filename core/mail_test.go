package core_test

import (
	"io/fs"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	appfs "github.com/trezcool/campus/fs"
	"github.com/trezcool/campus/testutil"
)

func TestEmbeddedLayouts(t *testing.T) {
	for _, name := range []string{"_base.txt", "_base.gohtml"} {
		_, err := fs.Stat(appfs.FS, "templates/email/"+name)
		assert.NoError(t, err, name)
	}
}

func TestParseEmailTemplates(t *testing.T) {
	logger := &testutil.Logger{}
	conf := core.NewTestConfig()
	conf.FrontendBaseURL = "https://campus.dev"
	core.ParseEmailTemplates(conf, logger)
	require.Empty(t, logger.Entries("error"))

	t.Run("Password reset", func(t *testing.T) {
		msg := &core.EmailMessage{
			To:           []mail.Address{{Name: "Ada", Address: "ada@campus.dev"}},
			Subject:      "Password reset",
			TemplateName: "password_reset",
			TemplateData: map[string]interface{}{"Name": "Ada", "UID": "MQ", "Token": "tok"},
		}
		require.NoError(t, msg.Render())
		assert.True(t, msg.HasContent())
		assert.Contains(t, msg.TextContent, "Hello Ada,")
		assert.Contains(t, msg.TextContent, "https://campus.dev/password-reset/MQ/tok")
		assert.Contains(t, msg.HTMLContent, `href="https://campus.dev/password-reset/MQ/tok"`)
	})

	t.Run("Fee reminder", func(t *testing.T) {
		msg := &core.EmailMessage{
			TemplateName: "fee_reminder",
			TemplateData: map[string]interface{}{
				"Name": "Bob", "Head": "Tuition", "Student": "Ann", "DueDate": "2024-09-30", "Balance": 500.0,
			},
		}
		require.NoError(t, msg.Render())
		assert.Contains(t, msg.TextContent, "Outstanding balance: 500.00.")
		assert.Contains(t, msg.HTMLContent, "<strong>Tuition</strong>")
	})
}
