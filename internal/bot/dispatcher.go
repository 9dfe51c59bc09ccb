package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vaultbot/internal/chart"
	"vaultbot/internal/core"
	"vaultbot/internal/poll"
	"vaultbot/internal/services"
	"vaultbot/internal/sheets"
)

// VaultManager is the part of the store the vault dialogs need.
type VaultManager interface {
	sheets.VaultReader
	sheets.VaultEditor
}

// Dispatcher routes updates to the poll, dialog, summary and chart
// handlers. Updates of one chat are handled one at a time.
type Dispatcher struct {
	messenger Messenger
	reports   *services.ReportService
	vaults    VaultManager
	locks     *poll.Locker
	sessions  *sessions
	members   map[int64]bool
}

var _ services.Notifier = (*Dispatcher)(nil)

// NewDispatcher wires the dispatcher. Vault dialogs idle for longer than
// sessionTTL are forgotten; zero keeps them forever.
func NewDispatcher(m Messenger, reports *services.ReportService, vaults VaultManager, sessionTTL time.Duration) *Dispatcher {
	return &Dispatcher{
		messenger: m,
		reports:   reports,
		vaults:    vaults,
		locks:     poll.NewLocker(),
		sessions:  newSessions(sessionTTL),
	}
}

// SetMembers restricts the bot to the household chats in ids. Other chats
// get a refusal and never reach the store. An empty list serves everyone.
func (d *Dispatcher) SetMembers(ids []int64) {
	d.members = make(map[int64]bool, len(ids))
	for _, id := range ids {
		d.members[id] = true
	}
}

func (d *Dispatcher) isMember(chatID int64) bool {
	return len(d.members) == 0 || d.members[chatID]
}

// SetClock replaces the time source of dialog expiry.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.sessions.mu.Lock()
	defer d.sessions.mu.Unlock()
	d.sessions.now = now
}

// Handle dispatches u. Errors never escape: they are logged and the chat
// gets a generic failure reply.
func (d *Dispatcher) Handle(ctx context.Context, u Update) {
	switch {
	case u.Message != nil:
		d.HandleMessage(ctx, *u.Message)
	case u.Callback != nil:
		d.HandleCallback(ctx, *u.Callback)
	}
}

func (d *Dispatcher) HandleMessage(ctx context.Context, m Message) {
	if !d.isMember(m.ChatID) {
		slog.WarnContext(ctx, "Message from outside the household", "chat_id", m.ChatID)
		d.reply(ctx, m.ChatID, msgNotMember, nil)
		return
	}
	unlock := d.locks.Lock(m.ChatID)
	defer unlock()

	if err := d.onMessage(ctx, m); err != nil {
		slog.ErrorContext(ctx, "Message handling failed", "chat_id", m.ChatID, "error", err)
		d.reply(ctx, m.ChatID, msgFailure, nil)
	}
}

func (d *Dispatcher) HandleCallback(ctx context.Context, cb Callback) {
	if err := d.messenger.AnswerCallback(ctx, cb.ID, ""); err != nil {
		slog.WarnContext(ctx, "Failed to answer callback", "chat_id", cb.ChatID, "error", err)
	}
	if !d.isMember(cb.ChatID) {
		slog.WarnContext(ctx, "Callback from outside the household", "chat_id", cb.ChatID)
		return
	}

	unlock := d.locks.Lock(cb.ChatID)
	defer unlock()

	if err := d.onCallback(ctx, cb); err != nil {
		slog.ErrorContext(ctx, "Callback handling failed", "chat_id", cb.ChatID, "data", cb.Data, "error", err)
		d.reply(ctx, cb.ChatID, msgFailure, nil)
	}
}

// NotifyStart prompts chatID to start the period report.
func (d *Dispatcher) NotifyStart(ctx context.Context, chatID int64) error {
	if err := d.messenger.Send(ctx, chatID, msgNotify, startKeyboard()); err != nil {
		return fmt.Errorf("notify chat %d: %w", chatID, err)
	}
	return nil
}

// Broadcast sends text to every chat and returns how many received it.
func (d *Dispatcher) Broadcast(ctx context.Context, chatIDs []int64, text string, keyboard []Row) int {
	sent := 0
	for _, id := range chatIDs {
		if err := d.messenger.Send(ctx, id, text, keyboard); err != nil {
			slog.WarnContext(ctx, "Broadcast failed", "chat_id", id, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// EvictSessions forgets expired vault dialogs.
func (d *Dispatcher) EvictSessions(now time.Time) int {
	return d.sessions.evict(now)
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string, keyboard []Row) {
	if err := d.messenger.Send(ctx, chatID, text, keyboard); err != nil {
		slog.WarnContext(ctx, "Failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (d *Dispatcher) onMessage(ctx context.Context, m Message) error {
	text := strings.TrimSpace(m.Text)
	if strings.HasPrefix(text, "/") {
		return d.onCommand(ctx, m, commandName(text))
	}
	if sess := d.sessions.get(m.ChatID); sess != nil {
		return d.onDialogText(ctx, m.ChatID, sess, text)
	}
	if run, ok := d.reports.ActiveRun(m.ChatID); ok {
		return d.answer(ctx, run, text)
	}
	d.reply(ctx, m.ChatID, msgIdle, nil)
	return nil
}

// commandName extracts "start" from "/start@vault_bot arg".
func commandName(text string) string {
	name := strings.Fields(text)[0]
	name = strings.TrimPrefix(name, "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}

func (d *Dispatcher) onCommand(ctx context.Context, m Message, cmd string) error {
	chat := m.ChatID
	switch cmd {
	case "start":
		d.sessions.drop(chat)
		return d.start(ctx, chat, m.From)
	case "summary":
		return d.summary(ctx, chat)
	case "chart":
		return d.sendChart(ctx, chat, core.EquivalenceSeries)
	case "vaults":
		return d.listVaults(ctx, chat)
	case "newvault":
		d.sessions.put(chat, &session{dialog: dialogCreate, step: stepVaultName})
		d.reply(ctx, chat, msgAskVaultName, nil)
		return nil
	case "editvault":
		return d.beginEdit(ctx, chat)
	case "back":
		return d.back(ctx, chat)
	case "cancel":
		d.cancel(ctx, chat)
		return nil
	case "help":
		d.reply(ctx, chat, msgHelp, nil)
		return nil
	}
	d.reply(ctx, chat, msgUnknownCommand, nil)
	return nil
}

func (d *Dispatcher) onCallback(ctx context.Context, cb Callback) error {
	chat := cb.ChatID
	switch data := cb.Data; {
	case data == dataKeep:
		return d.keep(ctx, chat)
	case data == dataBack:
		return d.back(ctx, chat)
	case data == dataStart:
		return d.start(ctx, chat, cb.From)
	case data == dataChart:
		return d.sendChart(ctx, chat, core.EquivalenceSeries)
	case strings.HasPrefix(data, dataChartPrefix):
		return d.editChart(ctx, cb, strings.TrimPrefix(data, dataChartPrefix))
	case strings.HasPrefix(data, dataEditPrefix):
		return d.onEditAction(ctx, chat, strings.TrimPrefix(data, dataEditPrefix))
	}
	slog.WarnContext(ctx, "Unknown callback data", "chat_id", chat, "data", cb.Data)
	return nil
}

func (d *Dispatcher) start(ctx context.Context, chat int64, from string) error {
	if run, ok := d.reports.UnsavedRun(chat); ok {
		d.reply(ctx, chat, msgRetrySave, nil)
		return d.finalize(ctx, run)
	}
	run, resumed, err := d.reports.StartRun(ctx, chat, from)
	switch {
	case errors.Is(err, services.ErrNoVaults):
		d.reply(ctx, chat, msgNoVaults, nil)
		return nil
	case errors.Is(err, services.ErrRunInProgress):
		d.reply(ctx, chat, msgRunInProgress, nil)
		return nil
	case err != nil:
		return fmt.Errorf("start run: %w", err)
	}
	if resumed {
		d.reply(ctx, chat, msgResumed, nil)
	}
	return d.ask(ctx, run)
}

func (d *Dispatcher) ask(ctx context.Context, run *poll.Run) error {
	q, err := run.CurrentQuestion()
	if err != nil {
		return err
	}
	d.reply(ctx, run.OwnerID, questionText(run, q), questionKeyboard(run, q))
	return nil
}

// answer evaluates text as the value of the current question. An invalid
// value leaves the run untouched and repeats the question.
func (d *Dispatcher) answer(ctx context.Context, run *poll.Run, text string) error {
	v, err := core.EvalAmount(text)
	if err != nil {
		d.reply(ctx, run.OwnerID, msgInvalidValue, nil)
		return d.ask(ctx, run)
	}
	return d.save(ctx, run, v)
}

func (d *Dispatcher) keep(ctx context.Context, chat int64) error {
	run, ok := d.reports.ActiveRun(chat)
	if !ok {
		d.reply(ctx, chat, msgNoRun, nil)
		return nil
	}
	q, err := run.CurrentQuestion()
	if err != nil {
		return err
	}
	if q.PreviousValue == nil {
		d.reply(ctx, chat, msgNoPrevious, nil)
		return nil
	}
	return d.save(ctx, run, *q.PreviousValue)
}

func (d *Dispatcher) save(ctx context.Context, run *poll.Run, v float64) error {
	run.SaveAnswer(v)
	d.reply(ctx, run.OwnerID, savedText(v), nil)
	if run.IsActive() {
		return d.ask(ctx, run)
	}
	return d.finalize(ctx, run)
}

// finalize stores a completed run. On failure the answers stay with the
// run and the next /start stores them again.
func (d *Dispatcher) finalize(ctx context.Context, run *poll.Run) error {
	res, err := d.reports.Finalize(ctx, run)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to store report", "chat_id", run.OwnerID, "period", run.PeriodKey, "error", err)
		d.reply(ctx, run.OwnerID, msgSaveFailed, startKeyboard())
		return nil
	}
	d.reply(ctx, run.OwnerID, msgWaitingOthers, nil)
	if !res.Complete {
		return nil
	}
	sent := d.Broadcast(ctx, res.Recipients, res.Message, chartKeyboard())
	slog.InfoContext(ctx, "Summary broadcast",
		"period", res.Period.Key,
		"recipients", len(res.Recipients),
		"sent", sent)
	return nil
}

func (d *Dispatcher) back(ctx context.Context, chat int64) error {
	run, ok := d.reports.ActiveRun(chat)
	if !ok {
		d.reply(ctx, chat, msgNoRun, nil)
		return nil
	}
	if run.IsFirstQuestion() {
		d.reply(ctx, chat, msgFirstQuestion, nil)
		return d.ask(ctx, run)
	}
	run.GoToPrevious()
	return d.ask(ctx, run)
}

func (d *Dispatcher) cancel(ctx context.Context, chat int64) {
	if sess := d.sessions.get(chat); sess != nil {
		d.sessions.drop(chat)
		if sess.dialog == dialogCreate {
			d.reply(ctx, chat, msgCreateCancelled, nil)
		} else {
			d.reply(ctx, chat, msgEditCancelled, nil)
		}
		return
	}
	if _, ok := d.reports.ActiveRun(chat); ok {
		d.reports.Cancel(chat)
		d.reply(ctx, chat, msgRunCancelled, nil)
		return
	}
	d.reply(ctx, chat, msgNothingToStop, nil)
}

func (d *Dispatcher) summary(ctx context.Context, chat int64) error {
	text, err := d.reports.SummaryText(ctx)
	if errors.Is(err, services.ErrNoData) {
		d.reply(ctx, chat, msgNoData, nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	d.reply(ctx, chat, text, chartKeyboard())
	return nil
}

// renderChart returns the PNG of key and the keyboard switching to the
// other series. ok is false when there is nothing to draw yet.
func (d *Dispatcher) renderChart(ctx context.Context, key string) (png []byte, keyboard []Row, ok bool, err error) {
	ts, err := d.reports.ChartData(ctx)
	if errors.Is(err, services.ErrNoData) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("chart data: %w", err)
	}
	png, err = chart.Render(ts, key)
	if err != nil {
		return nil, nil, false, err
	}
	return png, seriesKeyboard(ts.Keys(), key), true, nil
}

func (d *Dispatcher) sendChart(ctx context.Context, chat int64, key string) error {
	png, keyboard, ok, err := d.renderChart(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		d.reply(ctx, chat, msgNoData, nil)
		return nil
	}
	if err := d.messenger.SendPhoto(ctx, chat, png, key, keyboard); err != nil {
		return fmt.Errorf("send chart: %w", err)
	}
	return nil
}

// editChart replaces the photo the button belongs to with the series key.
func (d *Dispatcher) editChart(ctx context.Context, cb Callback, key string) error {
	png, keyboard, ok, err := d.renderChart(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		d.reply(ctx, cb.ChatID, msgNoData, nil)
		return nil
	}
	if err := d.messenger.EditPhoto(ctx, cb.ChatID, cb.MessageID, png, key, keyboard); err != nil {
		return fmt.Errorf("edit chart: %w", err)
	}
	return nil
}

func (d *Dispatcher) listVaults(ctx context.Context, chat int64) error {
	vaults, err := d.vaults.OwnerVaults(ctx, chat, true)
	if err != nil {
		return fmt.Errorf("list vaults: %w", err)
	}
	if len(vaults) == 0 {
		d.reply(ctx, chat, msgNoOwnVaults, nil)
		return nil
	}
	d.reply(ctx, chat, "Your vaults:\n\n"+vaultList(vaults), nil)
	return nil
}
