package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/Chorus/internal/adapters/media"
	"github.com/dkeye/Chorus/internal/adapters/rtc"
	"github.com/dkeye/Chorus/internal/adapters/transport"
	"github.com/dkeye/Chorus/internal/app/call"
	"github.com/dkeye/Chorus/internal/app/speaking"
	"github.com/dkeye/Chorus/internal/config"
	"github.com/dkeye/Chorus/internal/domain"
)

var (
	flagJoinUser    string
	flagJoinName    string
	flagJoinYes     bool
	flagJoinNoVideo bool
)

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a call and stay until interrupted",
	Long: `Join a call as a headless participant. Microphone and camera start off.

Commands on stdin:
  a   toggle microphone
  v   toggle camera
  p   print participants
  q   leave the call`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runJoin(cmd.Context(), cfg, domain.RoomID(args[0]), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	joinCmd.Flags().StringVar(&flagJoinUser, "user", "", "user id (random when empty)")
	joinCmd.Flags().StringVar(&flagJoinName, "name", "", "display name")
	joinCmd.Flags().BoolVarP(&flagJoinYes, "yes", "y", false, "enable devices without asking")
	joinCmd.Flags().BoolVar(&flagJoinNoVideo, "no-video", false, "capture audio only")
}

func newReceiver(cfg *config.Config, client *transport.Client) call.Receiver {
	if cfg.Client.Transport == config.TransportPush {
		return transport.NewStream(client, cfg.Client.PollInterval)
	}
	return transport.NewPoller(client, cfg.Client.PollInterval)
}

func runJoin(parent context.Context, cfg *config.Config, room domain.RoomID, in io.Reader, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	user := domain.UserID(flagJoinUser)
	if user == "" {
		user = domain.UserID(uuid.NewString())
	}
	name := flagJoinName
	if name == "" {
		name = string(user)
	}

	client, err := transport.NewClient(cfg.Client.ServerURL, cfg.Client.RequestTimeout)
	if err != nil {
		return err
	}
	peers, err := rtc.NewFactory(cfg.Client.ICEServers)
	if err != nil {
		return err
	}
	src := media.Source{Audio: true, Video: !flagJoinNoVideo}

	con := newConsole(in, out, flagJoinYes)
	levels := speaking.NewRegistry()

	ctrl := call.NewController(call.Options{
		Signaler: client,
		Receiver: newReceiver(cfg, client),
		Media: call.MediaSourceFunc(func(ctx context.Context) (call.LocalStream, error) {
			s, err := src.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			return s, nil
		}),
		Peers:         peers,
		Confirmer:     con,
		OnRemoteTrack: levels.Attach,
	})
	defer ctrl.Close()

	stopObserving := ctrl.Observe(func(r domain.RoomID, ps []call.Participant) {
		ids := make([]string, 0, len(ps))
		for _, p := range ps {
			ids = append(ids, fmt.Sprintf("%s(a=%t v=%t %s)", p.ID, p.IsAudioEnabled, p.IsVideoEnabled, p.Peer))
		}
		log.Info().Str("module", "callctl").Str("room_id", string(r)).Strs("participants", ids).Msg("participants changed")
	})
	defer stopObserving()

	if err := ctrl.Join(ctx, room, user, name); err != nil {
		return err
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Client.RequestTimeout)
		defer cancel()
		if err := ctrl.Leave(leaveCtx, room); err != nil {
			log.Error().Err(err).Str("module", "callctl").Msg("leave failed")
		}
	}()

	det := speaking.NewDetector(levels, cfg.Client.SpeakingThreshold)
	go det.Run(ctx, cfg.Client.SpeakingInterval, func(ctx context.Context) ([]call.Participant, error) {
		return ctrl.Participants(ctx, room)
	}, speakingLogger(room))

	fmt.Fprintf(out, "joined %s as %s; a=mic v=camera p=participants q=leave\n", room, user)
	return con.run(ctx, ctrl, room)
}

// speakingLogger logs the speaking set whenever it changes.
func speakingLogger(room domain.RoomID) func(map[domain.UserID]struct{}) {
	var last []string
	return func(set map[domain.UserID]struct{}) {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, string(id))
		}
		slices.Sort(ids)
		if slices.Equal(ids, last) {
			return
		}
		last = ids
		log.Info().Str("module", "callctl").Str("room_id", string(room)).Strs("speaking", ids).Msg("speaking")
	}
}

// console feeds stdin lines both to the command loop and to confirmation
// prompts. Prompts are asked from within a command, so the two never compete.
type console struct {
	in  io.Reader
	out io.Writer
	yes bool

	lines chan string

	audio bool
	video bool
}

func newConsole(in io.Reader, out io.Writer, yes bool) *console {
	return &console{in: in, out: out, yes: yes, lines: make(chan string)}
}

func (c *console) read(ctx context.Context) {
	defer close(c.lines)
	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		select {
		case c.lines <- strings.TrimSpace(sc.Text()):
		case <-ctx.Done():
			return
		}
	}
}

func (c *console) Confirm(ctx context.Context, m call.Medium) (bool, error) {
	if c.yes {
		return true, nil
	}
	device := "microphone"
	if m == call.MediumVideo {
		device = "camera"
	}
	fmt.Fprintf(c.out, "Allow the other participants to receive your %s? [y/N] ", device)
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case answer, ok := <-c.lines:
		if !ok {
			return false, io.EOF
		}
		answer = strings.ToLower(answer)
		return answer == "y" || answer == "yes", nil
	}
}

func (c *console) run(ctx context.Context, ctrl *call.Controller, room domain.RoomID) error {
	go c.read(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-c.lines:
			if !ok {
				// stdin closed; stay in the call until interrupted
				<-ctx.Done()
				return nil
			}
			if quit := c.exec(ctx, ctrl, room, line); quit {
				return nil
			}
		}
	}
}

func (c *console) exec(ctx context.Context, ctrl *call.Controller, room domain.RoomID, line string) (quit bool) {
	switch line {
	case "":
	case "q", "quit":
		return true
	case "a":
		if err := ctrl.ToggleAudio(ctx, room, !c.audio); err != nil {
			c.report(err)
			return false
		}
		c.audio = !c.audio
		fmt.Fprintf(c.out, "microphone on: %t\n", c.audio)
	case "v":
		if err := ctrl.ToggleVideo(ctx, room, !c.video); err != nil {
			c.report(err)
			return false
		}
		c.video = !c.video
		fmt.Fprintf(c.out, "camera on: %t\n", c.video)
	case "p":
		ps, err := ctrl.Participants(ctx, room)
		if err != nil {
			c.report(err)
			return false
		}
		for _, p := range ps {
			marker := " "
			if p.IsLocal {
				marker = "*"
			}
			fmt.Fprintf(c.out, "%s %-36s %-16s mic=%-5t cam=%-5t recv=%-5t %s\n", marker, p.ID, p.Name, p.IsAudioEnabled, p.IsVideoEnabled, p.HasAudio(), p.Peer)
		}
	default:
		fmt.Fprintf(c.out, "unknown command %q\n", line)
	}
	return false
}

func (c *console) report(err error) {
	if errors.Is(err, call.ErrNotConfirmed) {
		fmt.Fprintln(c.out, "kept off")
		return
	}
	fmt.Fprintf(c.out, "error: %v\n", err)
}
