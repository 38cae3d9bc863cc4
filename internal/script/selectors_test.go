package script

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpilot/internal/domain"
)

func TestDefaultChains(t *testing.T) {
	c := DefaultChains()
	require.NoError(t, c.Validate())
	assert.Equal(t, ".chat-input-editor", c.ChatInput[0])
	assert.Equal(t, ".send-button-container:not(.disabled)", c.SendButton[0])
	assert.Equal(t, "textarea", c.Input()[len(c.Input())-1])
	assert.Len(t, c.Input(), len(c.ChatInput)+1)
}

func TestChainsValidate(t *testing.T) {
	c := DefaultChains()
	c.SendButton = nil
	err := c.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	c = DefaultChains()
	c.StreamIndicator = SelectorChain{"button", "  "}
	assert.Error(t, c.Validate())

	c = DefaultChains()
	c.EditorClass = ""
	assert.Error(t, c.Validate())
}

func TestSelectorChainJSExpr(t *testing.T) {
	c := SelectorChain{"#a", `b[x='y']`}
	assert.Equal(t, "document.querySelector('#a')\n            || document.querySelector('b[x=\\'y\\']')", c.JSExpr())
	assert.Equal(t, `['#a', 'b[x=\'y\']']`, c.JSArray())
}

func TestConcatDoesNotAlias(t *testing.T) {
	base := make(SelectorChain, 1, 4)
	base[0] = "a"
	x := base.Concat(SelectorChain{"x"})
	y := base.Concat(SelectorChain{"y"})
	assert.Equal(t, SelectorChain{"a", "x"}, x)
	assert.Equal(t, SelectorChain{"a", "y"}, y)
}

func TestTimeoutProfileValidate(t *testing.T) {
	require.NoError(t, DefaultProfile().Validate())

	p := DefaultProfile()
	p.RetryDelay = 0
	assert.Error(t, p.Validate())

	p = DefaultProfile()
	p.MaxReloads = 0
	assert.Error(t, p.Validate())

	p = DefaultProfile()
	p.WatcherInterval = -time.Second
	assert.Error(t, p.Validate())
}

func TestSiteConfig(t *testing.T) {
	s := DefaultSite()
	require.NoError(t, s.Validate())

	assert.True(t, s.OnSiteDomain("https://www.kimi.com/chat/1"))
	assert.True(t, s.OnSiteDomain("https://kimi.com"))
	assert.True(t, s.OnSiteDomain("https://api.moonshot.cn/x"))
	assert.False(t, s.OnSiteDomain("https://notkimi.com"))
	assert.False(t, s.OnSiteDomain("http://127.0.0.1:7823/offline.html"))

	s.LocalOrigin = "http://127.0.0.1:7823"
	assert.True(t, s.IsLocal("http://127.0.0.1:7823/offline.html"))
	assert.False(t, s.IsLocal("https://www.kimi.com/"))

	bad := DefaultSite()
	bad.ChatURL = "/relative"
	assert.Error(t, bad.Validate())
}
