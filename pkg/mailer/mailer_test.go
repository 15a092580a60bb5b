package mailer_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetlabhq/vetnotify/pkg/mailer"
)

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	valid := mailer.Message{
		To:       "clinic@example.com",
		Subject:  "Report ready",
		BodyHTML: "<p>ready</p>",
	}

	tests := []struct {
		name    string
		mutate  func(*mailer.Message)
		wantErr bool
	}{
		{"valid message", func(m *mailer.Message) {}, false},
		{"text-only body is valid", func(m *mailer.Message) { m.BodyHTML = ""; m.BodyText = "ready" }, false},
		{"missing recipient", func(m *mailer.Message) { m.To = "" }, true},
		{"malformed recipient", func(m *mailer.Message) { m.To = "not-an-address" }, true},
		{"missing subject", func(m *mailer.Message) { m.Subject = "" }, true},
		{"missing body", func(m *mailer.Message) { m.BodyHTML = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := valid
			tt.mutate(&msg)

			err := msg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, mailer.ErrInvalidMessage)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidAddress(t *testing.T) {
	t.Parallel()

	assert.True(t, mailer.ValidAddress("vet@clinic.example.com"))
	assert.False(t, mailer.ValidAddress("vet@clinic"))
	assert.False(t, mailer.ValidAddress("vet clinic@example.com"))
	assert.False(t, mailer.ValidAddress(""))
}

func TestNewPostmarkClientConfigValidation(t *testing.T) {
	t.Parallel()

	base := mailer.Config{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		SenderEmail:          "lab@vetlab.example.com",
		ReplyToEmail:         "support@vetlab.example.com",
	}

	t.Run("valid config", func(t *testing.T) {
		t.Parallel()

		client, err := mailer.NewPostmarkClient(base)
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("missing tokens", func(t *testing.T) {
		t.Parallel()

		cfg := base
		cfg.PostmarkServerToken = ""
		_, err := mailer.NewPostmarkClient(cfg)
		assert.ErrorIs(t, err, mailer.ErrInvalidConfig)

		cfg = base
		cfg.PostmarkAccountToken = ""
		_, err = mailer.NewPostmarkClient(cfg)
		assert.ErrorIs(t, err, mailer.ErrInvalidConfig)
	})

	t.Run("invalid addresses", func(t *testing.T) {
		t.Parallel()

		cfg := base
		cfg.SenderEmail = "nope"
		_, err := mailer.NewPostmarkClient(cfg)
		assert.ErrorIs(t, err, mailer.ErrInvalidConfig)

		cfg = base
		cfg.ReplyToEmail = ""
		_, err = mailer.NewPostmarkClient(cfg)
		assert.ErrorIs(t, err, mailer.ErrInvalidConfig)
	})

	t.Run("must variant panics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			mailer.MustNewPostmarkClient(mailer.Config{})
		})
	})
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	t.Run("writes html and metadata", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		sender := mailer.NewDevSender(filepath.Join(dir, "outbox"))

		msg := mailer.Message{
			To:       "clinic@example.com",
			Subject:  "Sample received",
			BodyHTML: "<p>Sample S-100 received</p>",
			BodyText: "Sample S-100 received",
			Tag:      "sample-received",
		}
		require.NoError(t, sender.Send(context.Background(), msg))

		entries, err := os.ReadDir(filepath.Join(dir, "outbox"))
		require.NoError(t, err)
		require.Len(t, entries, 2)

		var htmlFile, jsonFile string
		for _, e := range entries {
			switch filepath.Ext(e.Name()) {
			case ".html":
				htmlFile = e.Name()
			case ".json":
				jsonFile = e.Name()
			}
		}
		require.NotEmpty(t, htmlFile)
		require.NotEmpty(t, jsonFile)
		assert.True(t, strings.Contains(htmlFile, "sample-received"))

		body, err := os.ReadFile(filepath.Join(dir, "outbox", htmlFile))
		require.NoError(t, err)
		assert.Equal(t, msg.BodyHTML, string(body))

		raw, err := os.ReadFile(filepath.Join(dir, "outbox", jsonFile))
		require.NoError(t, err)
		var meta map[string]any
		require.NoError(t, json.Unmarshal(raw, &meta))
		assert.Equal(t, "clinic@example.com", meta["to"])
		assert.Equal(t, "Sample received", meta["subject"])
	})

	t.Run("rejects invalid message", func(t *testing.T) {
		t.Parallel()

		sender := mailer.NewDevSender(t.TempDir())
		err := sender.Send(context.Background(), mailer.Message{To: "bad"})
		assert.ErrorIs(t, err, mailer.ErrInvalidMessage)
	})
}
