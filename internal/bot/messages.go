package bot

import (
	"fmt"
	"strings"

	"vaultbot/internal/aggregate"
	"vaultbot/internal/core"
	"vaultbot/internal/poll"
)

const (
	msgHelp = "I collect the balances of your vaults once per period and send everyone a summary when all vaults are reported.\n\n" +
		"/start - report your balances\n" +
		"/summary - latest summary\n" +
		"/chart - history chart\n" +
		"/vaults - list your vaults\n" +
		"/newvault - create a vault\n" +
		"/editvault - edit a vault\n" +
		"/back - previous question\n" +
		"/cancel - cancel the current report or dialog"

	msgFailure        = "Something went wrong, please try again later."
	msgNoVaults       = "You have no active vaults yet. Create one with /newvault."
	msgRunInProgress  = "A report is already in progress. Answer the current question or /cancel it."
	msgResumed        = "Resuming your report."
	msgInvalidValue   = "Invalid value"
	msgNoPrevious     = "There is no previous value, please type the amount."
	msgFirstQuestion  = "This is the first question."
	msgNoRun          = "No report in progress. Send /start to begin."
	msgRunCancelled   = "Report cancelled."
	msgNothingToStop  = "Nothing to cancel."
	msgWaitingOthers  = "📝 Your values are saved. Once everyone has reported I will send you the results."
	msgNoData         = "No period has been reported yet."
	msgUnknownCommand = "Unknown command. Send /help for the list of commands."
	msgIdle           = "Send /start to report your balances or /help for the commands."
	msgNotify         = "Time to report the balances of this period. Ready?"
	msgNotMember      = "This bot serves a private household."
	msgSaveFailed     = "Your values could not be saved. Press Start to try again, nothing is lost."
	msgRetrySave      = "Saving the values of your last report."

	msgAskVaultName     = "Enter the vault name"
	msgAskCurrency      = "Enter the vault currency, for example USD or EUR."
	msgUnknownCurrency  = "Unknown currency. Try again."
	msgEmptyTitle       = "The name cannot be empty. Try again."
	msgCreateCancelled  = "Vault creation cancelled."
	msgEditCancelled    = "Vault editing cancelled."
	msgBadVaultNumber   = "Invalid vault number. Try again."
	msgAskNewTitle      = "Enter the new vault name"
	msgAskNewCurrency   = "Enter the new vault currency, for example USD or EUR."
	msgAskNewAmount     = "Enter the new current amount"
	msgConfirmDeactive  = "Are you sure you want to deactivate this vault?"
	msgDeactivateCancel = "Deactivation cancelled."
	msgUnknownAction    = "Unknown action. Try again."
	msgNoOwnVaults      = "You have no vaults. Create one with /newvault."

	btnKeep     = "Unchanged"
	btnBack     = "⬅ Back"
	btnStart    = "Start"
	btnChart    = "Show chart 📊"
	btnRename   = "Rename"
	btnCurrency = "Change currency"
	btnAmount   = "Change current amount"
	btnDeactive = "Deactivate"
	btnYes      = "Yes"
	btnNo       = "No"
)

func questionText(run *poll.Run, q poll.Question) string {
	return fmt.Sprintf("(%d/%d) %s", run.Index()+1, run.Len(), q.Text)
}

func questionKeyboard(run *poll.Run, q poll.Question) []Row {
	var row Row
	if !run.IsFirstQuestion() {
		row = append(row, Button{Text: btnBack, Data: dataBack})
	}
	if q.PreviousValue != nil {
		row = append(row, Button{Text: btnKeep, Data: dataKeep})
	}
	if len(row) == 0 {
		return nil
	}
	return []Row{row}
}

func chartKeyboard() []Row {
	return []Row{{{Text: btnChart, Data: dataChart}}}
}

func startKeyboard() []Row {
	return []Row{{{Text: btnStart, Data: dataStart}}}
}

// seriesKeyboard offers every series except the one on screen.
func seriesKeyboard(keys []string, current string) []Row {
	var row Row
	for _, k := range keys {
		if k != current {
			row = append(row, Button{Text: k, Data: dataChartPrefix + k})
		}
	}
	if len(row) == 0 {
		return nil
	}
	return []Row{row}
}

func savedText(v float64) string {
	return "Saved value " + aggregate.FormatAmount(v)
}

// vaultList renders "1. Title (amount CUR)" lines, "?" for never reported.
func vaultList(vaults []core.Vault) string {
	var b strings.Builder
	for i, v := range vaults {
		amount := "?"
		if v.LastAmount != nil {
			amount = aggregate.FormatAmount(*v.LastAmount)
		}
		fmt.Fprintf(&b, "%d. %s (%s %s)", i+1, v.Title, amount, v.Currency)
		if !v.Active {
			b.WriteString(" [inactive]")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func editKeyboard(v core.Vault) []Row {
	rows := []Row{
		{{Text: btnRename, Data: dataEditPrefix + actionTitle}},
		{{Text: btnCurrency, Data: dataEditPrefix + actionCurrency}},
	}
	if v.LastAmount != nil {
		rows = append(rows, Row{{Text: btnAmount, Data: dataEditPrefix + actionAmount}})
	}
	return append(rows, Row{{Text: btnDeactive, Data: dataEditPrefix + actionActive}})
}

func confirmKeyboard() []Row {
	return []Row{{
		{Text: btnYes, Data: dataEditPrefix + actionActive + ":" + paramConfirm},
		{Text: btnNo, Data: dataEditPrefix + actionActive + ":" + paramCancel},
	}}
}
