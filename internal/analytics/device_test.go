package analytics_test

import (
	"context"
	"testing"

	"github.com/serroba/linkpulse/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	iPhoneUA    = "Mozilla/5.0 (iPhone; CPU iPhone OS 10_3_2 like Mac OS X) AppleWebKit/603.2.4 (KHTML, like Gecko) Version/10.0 Mobile/14F89 Safari/602.1"
	galaxyUA    = "Mozilla/5.0 (Linux; Android 4.3; GT-I9300 Build/JSS15J) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/59.0.3071.125 Mobile Safari/537.36"
	googlebotUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func noHints(string) string { return "" }

func TestUAClassifier_Classify(t *testing.T) {
	classifier := analytics.NewUAClassifier()
	ctx := context.Background()

	t.Run("iPhone", func(t *testing.T) {
		info, err := classifier.Classify(ctx, iPhoneUA, noHints)

		require.NoError(t, err)
		assert.Equal(t, "iOS", info.OS)
		assert.Equal(t, "Safari", info.Client)
		assert.Equal(t, "iPhone", info.Model)
		assert.Equal(t, "Apple", info.Brand)
		assert.False(t, info.IsBot)
	})

	t.Run("Samsung handset", func(t *testing.T) {
		info, err := classifier.Classify(ctx, galaxyUA, noHints)

		require.NoError(t, err)
		assert.Equal(t, "Android", info.OS)
		assert.Equal(t, "Chrome", info.Client)
		assert.Equal(t, "GT-I9300", info.Model)
		assert.Equal(t, "Samsung", info.Brand)
	})

	t.Run("crawler", func(t *testing.T) {
		info, err := classifier.Classify(ctx, googlebotUA, noHints)

		require.NoError(t, err)
		assert.True(t, info.IsBot)
		assert.Equal(t, "Googlebot", info.BotName)
	})

	t.Run("client hints fill the gaps", func(t *testing.T) {
		hints := map[string]string{
			"Sec-CH-UA-Platform": `"Android"`,
			"Sec-CH-UA-Model":    `"Pixel 7"`,
			"Sec-CH-UA":          `"Not=A?Brand";v="99", "Chromium";v="118", "Google Chrome";v="118"`,
		}

		info, err := classifier.Classify(ctx, "", func(name string) string { return hints[name] })

		require.NoError(t, err)
		assert.Equal(t, "Android", info.OS)
		assert.Equal(t, "Pixel 7", info.Model)
		assert.Equal(t, "Google", info.Brand)
		assert.Equal(t, "Google Chrome", info.Client)
	})

	t.Run("nil hints", func(t *testing.T) {
		_, err := classifier.Classify(ctx, iPhoneUA, nil)

		require.NoError(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := classifier.Classify(cancelled, iPhoneUA, noHints)

		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestClickEvent_Hint(t *testing.T) {
	event := &analytics.ClickEvent{ClientHints: map[string]string{
		"sec-ch-ua-mobile": "?1",
		"Sec-CH-UA-Model":  `"Pixel 7"`,
	}}

	assert.Equal(t, "?1", event.Hint("Sec-CH-UA-Mobile"))
	assert.Equal(t, `"Pixel 7"`, event.Hint("sec-ch-ua-model"))
	assert.Empty(t, event.Hint("Sec-CH-UA-Arch"))
}
