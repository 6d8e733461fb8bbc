// Package interactive provides the interactive command-line interface
// for megaphone-tail.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/megaphone-protocol/megaphone-go/pkg/client"
	"github.com/megaphone-protocol/megaphone-go/pkg/subscription"
	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

// Client is the part of *client.Client the shell drives.
type Client interface {
	Register(ctx context.Context, initializer client.Initializer) (*subscription.Endpoint, error)
	Status() client.Status
}

// Printer writes received events.
type Printer interface {
	PrintEvent(event wire.Event)
	SetRaw(raw bool)
}

// follower is one joined subscription set.
type follower struct {
	id       int
	channel  string
	streams  []string
	endpoint *subscription.Endpoint
}

// Shell handles interactive mode for megaphone-tail.
type Shell struct {
	rl     *readline.Instance
	stdout io.Writer
	stderr io.Writer

	mu        sync.Mutex
	nextID    int
	followers map[int]*follower
	wg        sync.WaitGroup
}

// New creates a shell reading from the terminal.
func New() (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "megaphone> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	s := newShell(rl.Stdout(), rl.Stderr())
	s.rl = rl
	return s, nil
}

func newShell(stdout, stderr io.Writer) *Shell {
	return &Shell{
		stdout:    stdout,
		stderr:    stderr,
		nextID:    1,
		followers: make(map[int]*follower),
	}
}

// Stdout returns a writer that coordinates with the prompt.
func (s *Shell) Stdout() io.Writer {
	return s.stdout
}

// Stderr returns a writer that coordinates with the prompt.
func (s *Shell) Stderr() io.Writer {
	return s.stderr
}

// Run starts the command loop. It returns when the user quits or ctx is
// done; cancel is called on quit.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc, c Client, p Printer) {
	if s.rl == nil {
		return
	}
	defer s.rl.Close()

	// Unblock Readline on shutdown.
	go func() {
		<-ctx.Done()
		_ = s.rl.Close()
	}()

	s.printHelp()

	for {
		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(s.stdout, "Exiting...")
			break
		}
		if quit := s.Exec(ctx, line, c, p); quit {
			break
		}
	}

	cancel()
	s.leaveAll()
	s.wg.Wait()
}

// Exec runs one command line and reports whether the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string, c Client, p Printer) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "join", "j":
		s.cmdJoin(ctx, args, c, p)
	case "leave", "l":
		s.cmdLeave(args)
	case "list", "ls":
		s.cmdList()
	case "status", "s":
		s.cmdStatus(c)
	case "raw":
		s.cmdRaw(args, p)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(s.stdout, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.stdout, `
Megaphone Commands:
  Subscriptions:
    join <channel> <stream>...  - Subscribe to streams of a channel
    leave <id>|all              - Drop a subscription set
    list                        - List joined subscription sets

  Client:
    status                      - Show bound channel, readers and cache
    raw on|off                  - Print events as NDJSON records

  General:
    help                        - Show this help
    quit                        - Exit`)
}

func (s *Shell) cmdJoin(ctx context.Context, args []string, c Client, p Printer) {
	if len(args) < 2 {
		fmt.Fprintln(s.stdout, "Usage: join <channel> <stream>...")
		return
	}
	channel := args[0]
	var streams []string
	for _, arg := range args[1:] {
		for _, stream := range strings.Split(arg, ",") {
			if stream != "" {
				streams = append(streams, stream)
			}
		}
	}

	endpoint, err := c.Register(ctx, client.Static(channel, streams...))
	if err != nil {
		fmt.Fprintf(s.stdout, "Join failed: %v\n", err)
		return
	}

	s.mu.Lock()
	f := &follower{id: s.nextID, channel: channel, streams: streams, endpoint: endpoint}
	s.nextID++
	s.followers[f.id] = f
	s.mu.Unlock()

	fmt.Fprintf(s.stdout, "Joined #%d: %s %s\n", f.id, channel, strings.Join(streams, ","))

	s.wg.Add(1)
	go s.follow(ctx, f, p)
}

// follow prints events of f until its endpoint ends.
func (s *Shell) follow(ctx context.Context, f *follower, p Printer) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.followers, f.id)
		s.mu.Unlock()
	}()

	for {
		event, err := f.endpoint.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, subscription.ErrEndOfStream):
				fmt.Fprintf(s.stdout, "#%d ended (%s)\n", f.id, f.channel)
			case errors.Is(err, subscription.ErrClosed), errors.Is(err, context.Canceled):
			default:
				fmt.Fprintf(s.stderr, "#%d: %v\n", f.id, err)
			}
			return
		}
		p.PrintEvent(event)
	}
}

func (s *Shell) cmdLeave(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.stdout, "Usage: leave <id>|all")
		return
	}
	if args[0] == "all" {
		n := s.leaveAll()
		fmt.Fprintf(s.stdout, "Left %d subscription set(s)\n", n)
		return
	}

	id, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil {
		fmt.Fprintf(s.stdout, "Invalid id: %s\n", args[0])
		return
	}
	s.mu.Lock()
	f, ok := s.followers[id]
	s.mu.Unlock()
	if !ok {
		fmt.Fprintf(s.stdout, "No subscription set #%d\n", id)
		return
	}
	f.endpoint.Close()
	fmt.Fprintf(s.stdout, "Left #%d\n", id)
}

func (s *Shell) leaveAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.followers {
		f.endpoint.Close()
	}
	return len(s.followers)
}

func (s *Shell) cmdList() {
	s.mu.Lock()
	ids := make([]int, 0, len(s.followers))
	for id := range s.followers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		f := s.followers[id]
		lines = append(lines, fmt.Sprintf("  #%d  %s  %s", f.id, f.channel, strings.Join(f.streams, ",")))
	}
	s.mu.Unlock()

	if len(lines) == 0 {
		fmt.Fprintln(s.stdout, "No subscriptions")
		return
	}
	fmt.Fprintf(s.stdout, "Subscription sets (%d):\n", len(lines))
	for _, line := range lines {
		fmt.Fprintln(s.stdout, line)
	}
}

func (s *Shell) cmdStatus(c Client) {
	st := c.Status()

	channel := "(none)"
	if info, err := wire.ParseChannelInfo(st.Channel); err == nil {
		channel = fmt.Sprintf("%s (agent %s)", info, info.AgentID)
	}
	fmt.Fprintf(s.stdout, "Channel:       %s\n", channel)
	fmt.Fprintf(s.stdout, "Readers:       %d\n", st.Readers)
	fmt.Fprintf(s.stdout, "Subscriptions: %d\n", st.Subscriptions)
	fmt.Fprintf(s.stdout, "Recency cache: %d/%d\n", st.CachedEvents, st.CacheCapacity)

	addrs := make([]string, 0, len(st.Channels))
	for addr := range st.Channels {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		fmt.Fprintf(s.stdout, "  %s: %d\n", addr, st.Channels[addr])
	}
}

func (s *Shell) cmdRaw(args []string, p Printer) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(s.stdout, "Usage: raw on|off")
		return
	}
	p.SetRaw(args[0] == "on")
}
