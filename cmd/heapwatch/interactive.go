package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cloudflare/workerd-sub014/engine"
	"github.com/cloudflare/workerd-sub014/heap"
	"github.com/cloudflare/workerd-sub014/realm"
	"github.com/cloudflare/workerd-sub014/resource"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const maxEvents = 12

// interactiveModel is a small REPL over one engine instance: named
// extension handles, wrap/detach, explicit collection passes, and a
// live event feed from the heap.
type interactiveModel struct {
	eng      *engine.Engine
	desc     *realm.Descriptor
	input    textinput.Model
	handles  map[string]*resource.Ref[*sample]
	wrappers map[string]*realm.Wrapper
	events   []string
	errMsg   string
	nextID   int
}

func newInteractiveModel(limit int) *interactiveModel {
	var opts []engine.Option
	if limit > 0 {
		opts = append(opts, engine.WithHeapLimit(limit))
	}
	e := engine.New(opts...)

	ti := textinput.New()
	ti.Placeholder = "alloc a"
	ti.Prompt = "> "
	ti.Width = 48
	ti.Focus()

	m := &interactiveModel{
		eng:      e,
		desc:     &realm.Descriptor{Name: "Sample"},
		input:    ti,
		handles:  make(map[string]*resource.Ref[*sample]),
		wrappers: make(map[string]*realm.Wrapper),
	}
	e.Heap().Subscribe(m)
	return m
}

// OnHeapEvent implements heap.Observer. Commands run on the update
// goroutine, so appending here is safe.
func (m *interactiveModel) OnHeapEvent(ev heap.Event) {
	var line string
	switch ev.Type {
	case heap.EventAllocated:
		line = "alloc " + ev.Cell.DebugName()
	case heap.EventFinalized:
		line = "finalize " + ev.Cell.DebugName()
	case heap.EventCollected:
		line = fmt.Sprintf("pass %d: marked %d, finalized %d, live %d",
			ev.Stats.Pass, ev.Stats.Marked, ev.Stats.Finalized, ev.Stats.LiveCells)
	}
	m.events = append(m.events, line)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.eng.Close()
			return m, tea.Quit
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "quit" || line == "q" {
				m.eng.Close()
				return m, tea.Quit
			}
			m.errMsg = ""
			if err := m.exec(line); err != nil {
				m.errMsg = err.Error()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) exec(line string) error {
	if line == "" {
		return nil
	}
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "alloc":
		if len(args) != 1 {
			return fmt.Errorf("usage: alloc <name>")
		}
		name := args[0]
		if _, ok := m.handles[name]; ok {
			return fmt.Errorf("handle %q already exists", name)
		}
		m.handles[name] = resource.Alloc(m.eng.Heap(), &sample{id: m.nextID})
		m.nextID++
		return nil

	case "link":
		if len(args) != 2 {
			return fmt.Errorf("usage: link <parent> <child>")
		}
		p, ok := m.handles[args[0]]
		if !ok {
			return fmt.Errorf("no handle %q", args[0])
		}
		c, ok := m.handles[args[1]]
		if !ok {
			return fmt.Errorf("no handle %q", args[1])
		}
		return m.eng.Do(func() error {
			p.Get().children = append(p.Get().children, c.Clone())
			return nil
		})

	case "wrap":
		if len(args) != 1 {
			return fmt.Errorf("usage: wrap <name>")
		}
		ref, ok := m.handles[args[0]]
		if !ok {
			return fmt.Errorf("no handle %q", args[0])
		}
		return m.eng.Do(func() error {
			w, err := realm.Wrap(m.eng.Realm(), ref, m.desc)
			if err != nil {
				return err
			}
			m.wrappers[args[0]] = w
			return nil
		})

	case "detach":
		if len(args) != 1 {
			return fmt.Errorf("usage: detach <name>")
		}
		w, ok := m.wrappers[args[0]]
		if !ok {
			return fmt.Errorf("no wrapper for %q", args[0])
		}
		delete(m.wrappers, args[0])
		return m.eng.Do(func() error {
			w.Detach()
			return nil
		})

	case "drop":
		if len(args) != 1 {
			return fmt.Errorf("usage: drop <name>")
		}
		ref, ok := m.handles[args[0]]
		if !ok {
			return fmt.Errorf("no handle %q", args[0])
		}
		delete(m.handles, args[0])
		ref.Release()
		return nil

	case "gc":
		m.eng.CollectGarbage()
		return nil

	default:
		return fmt.Errorf("commands: alloc, link, wrap, detach, drop, gc, quit")
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("heapwatch"))
	b.WriteString(" instance ")
	b.WriteString(m.eng.ID().String())
	b.WriteString("\n\n")

	s := m.eng.Heap().Stats()
	b.WriteString(statStyle.Render(fmt.Sprintf(
		"live %d cells / %d bytes   allocated %d   finalized %d   passes %d",
		s.LiveCells, s.LiveBytes, s.TotalAllocated, s.TotalFinalized, s.Passes)))
	b.WriteString("\n\n")

	names := make([]string, 0, len(m.handles))
	for name := range m.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	b.WriteString("Handles:\n")
	if len(names) == 0 {
		b.WriteString(helpStyle.Render("  (none)"))
		b.WriteString("\n")
	}
	for _, name := range names {
		ref := m.handles[name]
		wrapped := ""
		if _, ok := m.wrappers[name]; ok {
			wrapped = " [wrapped]"
		}
		b.WriteString(fmt.Sprintf("  %s  strong=%d  edges=%d%s\n",
			nameStyle.Render(name), ref.StrongCount(), len(ref.Get().children), wrapped))
	}
	b.WriteString("\n")

	b.WriteString("Events:\n")
	for _, ev := range m.events {
		b.WriteString("  ")
		b.WriteString(eventStyle.Render(ev))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.errMsg != "" {
		b.WriteString(errorStyle.Render("Error: " + m.errMsg))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("alloc <n> • link <p> <c> • wrap <n> • detach <n> • drop <n> • gc • quit"))

	return b.String()
}

func runInteractive(limit int) error {
	p := tea.NewProgram(newInteractiveModel(limit), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
