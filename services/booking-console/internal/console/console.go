package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/md-rashed-zaman/slotbook/libs/timeofday"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/authority"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/selection"
	"github.com/md-rashed-zaman/slotbook/services/booking-console/internal/session"
)

var errQuit = errors.New("quit")

// PassThrough covers the authority calls the console forwards without interpretation.
type PassThrough interface {
	Ingest(ctx context.Context, payload []byte) error
	Calendar(ctx context.Context, userID int) (authority.CalendarView, error)
}

type Console struct {
	session *session.Session
	pass    PassThrough
	logger  *slog.Logger
	out     io.Writer
}

func New(s *session.Session, pass PassThrough, logger *slog.Logger, out io.Writer) *Console {
	return &Console{session: s, pass: pass, logger: logger, out: out}
}

// Run reads one command per line until EOF, "quit" or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	c.printf("Find & book time slots. Type help for commands.\n")
	for {
		c.printf("> ")
		if !sc.Scan() {
			c.printf("\n")
			return sc.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		err := c.Exec(ctx, sc.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			c.printf("error: %v\n", err)
		}
	}
}

// Exec runs a single command line.
func (c *Console) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		c.help()
		return nil
	case "quit", "exit":
		return errQuit
	case "suggest":
		return c.suggest(ctx, args)
	case "show", "list":
		c.show()
		return nil
	case "options":
		return c.options(args)
	case "pick":
		return c.pick(args)
	case "book":
		return c.open(args)
	case "confirm":
		return c.confirm(ctx)
	case "cancel":
		if err := c.session.Booking().Cancel(); err != nil {
			return err
		}
		c.printf("Booking cancelled.\n")
		return nil
	case "retry":
		st, err := c.session.Booking().Retry()
		if err != nil {
			return err
		}
		c.promptConfirm(st)
		return nil
	case "close":
		err := c.session.Booking().Close(ctx)
		if errors.Is(err, booking.ErrIllegalTransition) {
			return err
		}
		if err != nil && !errors.Is(err, session.ErrSuperseded) {
			c.printf("%s\n", session.FailureMessage(err))
			return nil
		}
		c.show()
		return nil
	case "status":
		c.status()
		return nil
	case "ingest":
		return c.ingest(ctx, args)
	case "calendar":
		return c.calendar(ctx, args)
	default:
		return fmt.Errorf("unknown command %q (type help)", cmd)
	}
}

func (c *Console) help() {
	c.printf(`commands:
  suggest [minutes]      fetch suggested windows (duration %d-%d, current %d)
  show                   list windows with the selected start and booking slot
  options <n>            list start times for window n
  pick <n> <HH:MM>       choose the start time for window n
  book <n>               ask to book window n with its selected start
  confirm | cancel       answer the open booking prompt
  retry                  re-open the prompt after a failed booking
  close                  dismiss a confirmed booking and refresh suggestions
  status                 show the booking state
  ingest <file>          post a busy-interval JSON payload
  calendar <user-id>     show busy and booked slots for a user
  quit
`, c.session.Limits().Min, c.session.Limits().Max, c.session.Duration())
}

func (c *Console) suggest(ctx context.Context, args []string) error {
	duration := c.session.Duration()
	if len(args) > 0 {
		d, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("duration must be a number of minutes")
		}
		duration = d
	}
	_, err := c.session.RequestSuggestions(ctx, duration)
	if errors.Is(err, session.ErrSuperseded) {
		return nil
	}
	if err != nil {
		c.printf("%s\n", session.FailureMessage(err))
		return nil
	}
	c.show()
	return nil
}

func (c *Console) show() {
	rows := c.session.Rows()
	if len(rows) == 0 {
		c.printf("No suggestions.\n")
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tORIGINAL SLOT\tSTART (%d mins)\tBOOKING SLOT\tOPTIONS\n", c.session.Duration())
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n",
			r.Index,
			span(r.Window),
			timeofday.Format(r.Selected),
			span(r.Candidate),
			len(r.Options),
		)
	}
	_ = tw.Flush()
}

func (c *Console) options(args []string) error {
	index, err := indexArg(args)
	if err != nil {
		return err
	}
	for _, r := range c.session.Rows() {
		if r.Index != index {
			continue
		}
		labels := make([]string, 0, len(r.Options))
		for _, o := range r.Options {
			labels = append(labels, timeofday.Format(o))
		}
		c.printf("%s\n", strings.Join(labels, " "))
		return nil
	}
	return fmt.Errorf("%w: index %d", selection.ErrUnknownWindow, index)
}

func (c *Console) pick(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: pick <n> <HH:MM>")
	}
	index, err := indexArg(args[:1])
	if err != nil {
		return err
	}
	start, err := timeofday.Parse(args[1])
	if err != nil {
		return err
	}
	if err := c.session.Select(index, start); err != nil {
		return err
	}
	c.show()
	return nil
}

func (c *Console) open(args []string) error {
	index, err := indexArg(args)
	if err != nil {
		return err
	}
	st, err := c.session.Booking().Open(index)
	if err != nil {
		return err
	}
	c.promptConfirm(st)
	return nil
}

func (c *Console) promptConfirm(st booking.Status) {
	c.printf("Confirm Booking: are you sure you want to book slot %s? (confirm / cancel)\n", span(st.Candidate))
}

func (c *Console) confirm(ctx context.Context) error {
	st, err := c.session.Booking().Confirm(ctx)
	switch {
	case errors.Is(err, booking.ErrIllegalTransition), errors.Is(err, booking.ErrInFlight):
		return err
	case errors.Is(err, booking.ErrDiscarded):
		c.printf("The booking prompt was closed before the calendar answered.\n")
		return nil
	}
	switch st.Phase {
	case booking.Success:
		c.printf("Booking Confirmed! Your slot %s has been successfully booked. (close)\n", span(st.Candidate))
	case booking.Failed:
		c.printf("Booking Failed: %s (retry / book <n>)\n", st.Reason)
	}
	return nil
}

func (c *Console) status() {
	st := c.session.Booking().Status()
	switch st.Phase {
	case booking.Idle:
		c.printf("idle\n")
	case booking.Failed:
		c.printf("%s: window %d, slot %s: %s\n", st.Phase, st.Index, span(st.Candidate), st.Reason)
	default:
		c.printf("%s: window %d, slot %s\n", st.Phase, st.Index, span(st.Candidate))
	}
}

func (c *Console) ingest(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: ingest <file>")
	}
	payload, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if err := c.pass.Ingest(ctx, payload); err != nil {
		if errors.Is(err, authority.ErrInvalidJSON) {
			c.printf("Invalid JSON format. Please check your input.\n")
			return nil
		}
		var re *authority.RequestError
		if errors.As(err, &re) && re.Err != nil {
			c.printf("Network error. Please check your connection.\n")
			return nil
		}
		c.printf("Failed to post slots. Please try again.\n")
		c.logger.Warn("ingest failed", "err", err)
		return nil
	}
	c.printf("Slots posted successfully!\n")
	return nil
}

func (c *Console) calendar(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: calendar <user-id>")
	}
	userID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("user id must be a number")
	}
	view, err := c.pass.Calendar(ctx, userID)
	if err != nil {
		c.printf("Failed to fetch calendar data. Please check the user ID.\n")
		c.logger.Warn("calendar fetch failed", "user_id", userID, "err", err)
		return nil
	}
	c.printf("Calendar for user %d\n", userID)
	c.printSlots("Busy", view.Busy)
	c.printSlots("Booked", view.Booked)
	return nil
}

func (c *Console) printSlots(title string, list []timeofday.Interval) {
	if len(list) == 0 {
		c.printf("  %s: none\n", title)
		return
	}
	c.printf("  %s (%d):\n", title, len(list))
	for _, iv := range list {
		c.printf("    %s\n", span(iv))
	}
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func indexArg(args []string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("window number required")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("window number must be an integer")
	}
	return n, nil
}

func span(iv timeofday.Interval) string {
	return timeofday.Format(iv.Start) + " - " + timeofday.Format(iv.End)
}
