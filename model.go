package main

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/nbd-wtf/go-nostr"
)

// uiState is the current screen of the zap flow.
type uiState int

const (
	stateInput     uiState = iota // entering a target
	stateLoading                  // fetching the target event
	stateArticle                  // target preview with zap stats
	stateAmount                   // entering the amount in sats
	stateComment                  // entering an optional comment
	statePreparing                // resolving endpoints and invoices
	stateInvoices                 // per-recipient invoice list
)

type model struct {
	cfg    Config
	keys   Keys
	pool   *nostr.SimplePool
	relays []string

	width  int
	height int
	state  uiState

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model
	mdRender *glamour.TermRenderer
	mdStyle  string

	// Target being zapped. All zap flow state below is owned by this
	// target and discarded when the user picks a new one.
	target     ZapTarget
	event      *nostr.Event
	authorMeta ProfileMetadata

	stats       zapStatsMsg
	statsLoaded bool

	amountSats   int64
	comment      string
	invoices     []SplitInvoice
	splitIgnored bool
	selected     int

	history     []ZapHistoryEntry
	showHistory bool

	statusMsg string

	// QR overlay (non-empty = show full-screen QR)
	qrOverlay string
}

func newModel(cfg Config, keys Keys, pool *nostr.SimplePool, initialTarget string, mdRender *glamour.TermRenderer, mdStyle string) model {
	ti := textinput.New()
	ti.Placeholder = "note1…, nevent1…, naddr1… or hex event id"
	ti.Prompt = "> "
	ti.PromptStyle = promptStyle
	ti.CharLimit = 256
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	m := model{
		cfg:      cfg,
		keys:     keys,
		pool:     pool,
		relays:   cfg.Relays,
		width:    80,
		height:   24,
		state:    stateInput,
		input:    ti,
		viewport: vp,
		spin:     sp,
		mdRender: mdRender,
		mdStyle:  mdStyle,
	}

	if initialTarget != "" {
		m.input.SetValue(initialTarget)
	}

	return m
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spin.Tick}
	if m.input.Value() != "" {
		if cmd := m.startTargetFetch(m.input.Value()); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

// startTargetFetch parses the input and kicks off the target fetch, or sets
// a status message on parse failure.
func (m *model) startTargetFetch(input string) tea.Cmd {
	ref, err := parseTargetInput(input)
	if err != nil {
		m.statusMsg = err.Error()
		m.state = stateInput
		return nil
	}
	m.resetFlow()
	m.state = stateLoading
	m.statusMsg = ""
	return fetchTargetCmd(m.pool, m.relays, ref)
}

// resetFlow discards all state owned by the previous target. In-flight
// completions for that target are discarded on arrival, not cancelled.
func (m *model) resetFlow() {
	m.target = ZapTarget{}
	m.event = nil
	m.authorMeta = ProfileMetadata{}
	m.stats = zapStatsMsg{}
	m.statsLoaded = false
	m.amountSats = 0
	m.comment = ""
	m.invoices = nil
	m.splitIgnored = false
	m.selected = 0
	m.qrOverlay = ""
}

// selectedInvoice returns the selected split entry, or nil.
func (m *model) selectedInvoice() *SplitInvoice {
	if m.selected >= 0 && m.selected < len(m.invoices) {
		return &m.invoices[m.selected]
	}
	return nil
}

// payableSelected reports whether the selected entry can be paid now.
func (m *model) payableSelected() bool {
	inv := m.selectedInvoice()
	return inv != nil && inv.Invoice != "" && !inv.Paid && !inv.Paying
}

// resolveName returns the display name for a pubkey, falling back to the
// short key.
func (m *model) resolveName(inv SplitInvoice) string {
	if inv.Name != "" {
		return inv.Name
	}
	return shortPK(inv.Recipient)
}
