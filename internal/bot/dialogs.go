package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vaultbot/internal/aggregate"
	"vaultbot/internal/core"
)

func (d *Dispatcher) beginEdit(ctx context.Context, chat int64) error {
	vaults, err := d.vaults.ActiveVaults(ctx, chat)
	if err != nil {
		return fmt.Errorf("list vaults: %w", err)
	}
	if len(vaults) == 0 {
		d.reply(ctx, chat, msgNoOwnVaults, nil)
		return nil
	}
	d.sessions.put(chat, &session{dialog: dialogEdit, step: stepChooseVault, options: vaults})
	d.reply(ctx, chat, "Choose a vault:\n\n"+vaultList(vaults), nil)
	return nil
}

func (d *Dispatcher) onDialogText(ctx context.Context, chat int64, sess *session, text string) error {
	switch sess.step {
	case stepVaultName:
		if text == "" {
			d.reply(ctx, chat, msgEmptyTitle, nil)
			return nil
		}
		sess.name = text
		sess.step = stepVaultCurrency
		d.sessions.touch(sess)
		d.reply(ctx, chat, msgAskCurrency, nil)
		return nil

	case stepVaultCurrency:
		cur, err := core.NormalizeCurrency(text)
		if err != nil {
			d.reply(ctx, chat, msgUnknownCurrency, nil)
			return nil
		}
		v, err := d.vaults.CreateVault(ctx, core.Vault{OwnerID: chat, Title: sess.name, Currency: cur})
		if err != nil {
			d.sessions.drop(chat)
			return fmt.Errorf("create vault: %w", err)
		}
		d.sessions.drop(chat)
		d.reply(ctx, chat, fmt.Sprintf("Vault %s (%s) created!", v.Title, v.Currency), nil)
		return nil

	case stepChooseVault:
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 || n > len(sess.options) {
			d.reply(ctx, chat, msgBadVaultNumber, nil)
			return nil
		}
		sess.vault = sess.options[n-1]
		sess.step = stepChooseAction
		d.sessions.touch(sess)
		d.reply(ctx, chat,
			fmt.Sprintf("What do you want to do with %s (%s)?", sess.vault.Title, sess.vault.Currency),
			editKeyboard(sess.vault))
		return nil

	case stepActionInput:
		return d.performAction(ctx, chat, sess, text)
	}
	d.reply(ctx, chat, msgUnknownAction, nil)
	return nil
}

// onEditAction handles "<action>" and "<action>:<param>" button data of the
// edit dialog.
func (d *Dispatcher) onEditAction(ctx context.Context, chat int64, data string) error {
	sess := d.sessions.get(chat)
	if sess == nil || sess.dialog != dialogEdit || sess.step < stepChooseAction {
		d.reply(ctx, chat, "This dialog is over. Send /editvault to start again.", nil)
		return nil
	}
	action, param, _ := strings.Cut(data, ":")

	switch action {
	case actionTitle, actionCurrency, actionAmount:
		sess.action = action
		sess.step = stepActionInput
		d.sessions.touch(sess)
		d.reply(ctx, chat, actionPrompt(action), nil)
		return nil
	case actionActive:
		switch param {
		case "":
			sess.action = action
			d.sessions.touch(sess)
			d.reply(ctx, chat, msgConfirmDeactive, confirmKeyboard())
			return nil
		case paramConfirm:
			d.sessions.drop(chat)
			if err := d.vaults.SetVaultActive(ctx, sess.vault.ID, false); err != nil {
				return fmt.Errorf("deactivate vault: %w", err)
			}
			d.reply(ctx, chat, fmt.Sprintf("Vault %s deactivated", sess.vault.Title), nil)
			return nil
		default:
			d.sessions.drop(chat)
			d.reply(ctx, chat, msgDeactivateCancel, nil)
			return nil
		}
	}
	d.reply(ctx, chat, msgUnknownAction, nil)
	return nil
}

func actionPrompt(action string) string {
	switch action {
	case actionTitle:
		return msgAskNewTitle
	case actionCurrency:
		return msgAskNewCurrency
	default:
		return msgAskNewAmount
	}
}

// performAction applies the typed value of the chosen action. Invalid input
// keeps the dialog open for another try.
func (d *Dispatcher) performAction(ctx context.Context, chat int64, sess *session, text string) error {
	v := sess.vault
	switch sess.action {
	case actionTitle:
		if text == "" {
			d.reply(ctx, chat, msgEmptyTitle, nil)
			return nil
		}
		if err := d.vaults.RenameVault(ctx, v.ID, text); err != nil {
			if errors.Is(err, core.ErrEmptyTitle) {
				d.reply(ctx, chat, msgEmptyTitle, nil)
				return nil
			}
			d.sessions.drop(chat)
			return fmt.Errorf("rename vault: %w", err)
		}
		d.sessions.drop(chat)
		d.reply(ctx, chat, fmt.Sprintf("Vault %s renamed to %s", v.Title, text), nil)
		return nil

	case actionCurrency:
		cur, err := core.NormalizeCurrency(text)
		if err != nil {
			d.reply(ctx, chat, msgUnknownCurrency, nil)
			return nil
		}
		d.sessions.drop(chat)
		if err := d.vaults.ChangeVaultCurrency(ctx, v.ID, cur); err != nil {
			return fmt.Errorf("change vault currency: %w", err)
		}
		d.reply(ctx, chat, fmt.Sprintf("Currency of vault %s changed to %s", v.Title, cur), nil)
		return nil

	case actionAmount:
		amount, err := core.EvalAmount(text)
		if err != nil {
			d.reply(ctx, chat, msgInvalidValue+". Try again.", nil)
			return nil
		}
		d.sessions.drop(chat)
		err = d.vaults.ChangeVaultAmount(ctx, v.ID, amount)
		if errors.Is(err, core.ErrNoSubmissions) {
			d.reply(ctx, chat, fmt.Sprintf("Vault %s has no reported amount yet.", v.Title), nil)
			return nil
		}
		if err != nil {
			return fmt.Errorf("change vault amount: %w", err)
		}
		d.reply(ctx, chat,
			fmt.Sprintf("Current amount of vault %s changed to %s", v.Title, aggregate.FormatAmount(amount)), nil)
		return nil
	}
	d.reply(ctx, chat, msgUnknownAction, nil)
	return nil
}
