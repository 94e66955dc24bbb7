package conversation

import (
	"fmt"

	"github.com/m3rciful/vitalsbot/internal/profile"
	"github.com/m3rciful/vitalsbot/internal/timers"
)

// HelpText answers /start, /help and /cancel.
const HelpText = "Welcome to the Health Monitoring Bot! Here are the available commands:\n\n" +
	"• /start or /help: Show this help message.\n" +
	"• /data: Begin the process to view your health data.\n" +
	"• /settimer: Set a one-time or repeating timer to receive data after/every specified minutes.\n" +
	"• /cleartimer: Clear the set timer.\n" +
	"• /logout: Clear your saved login information.\n" +
	"• /cancel: Abandon the current conversation."

const (
	msgAskIdentity    = "Please enter your user ID to continue."
	msgNotRegistered  = "This ID is not registered. Please contact an administrator."
	msgRejected       = "Your account access was not approved."
	msgPending        = "Your account is still waiting for admin approval."
	msgProfileError   = "An error occurred while fetching your profile."
	msgAskMinutes     = "Please enter the number of minutes for the timer."
	msgNotPositive    = "Please enter a positive number."
	msgNotNumber      = "That doesn't look like a valid number. Please enter a number."
	msgChooseKind     = "Choose timer type:"
	msgChooseAction   = "What would you like to do?"
	msgAskLatestCount = "Please enter the number of latest records you would like to see (e.g., 10)."
	msgRangeFormat    = "Invalid range format. Please use the format 'low-high' (e.g., 60-90)."
	msgRangeOrder     = "Invalid range: low value cannot be greater than high value. Please re-enter (e.g., 60-90)."
	msgDateFormat     = "Invalid date format. Please use YYYY-MM-DD (e.g., 2023-01-15)."
	msgTimerDataset   = "Which data would you like to view after the timer?"

	msgLoggedOut    = "You have been successfully logged out."
	msgNotLoggedIn  = "You were not logged in."
	msgTimerCleared = "Timer cleared."
	msgNoTimer      = "No timer set."
)

func msgTooLarge(limit int64) string {
	return fmt.Sprintf("That number is too large. Please enter at most %d.", limit)
}

func msgRestart(command string) string {
	return fmt.Sprintf("Something went wrong. Please start over with %s.", command)
}

func msgWelcome(p profile.Profile) string {
	email := p.Email
	if email == "" {
		email = "user"
	}
	return fmt.Sprintf("Welcome back, %s. Which data would you like to view?", email)
}

func msgStatus(p profile.Profile) string {
	if p.Status == profile.StatusRejected {
		return msgRejected
	}
	return msgPending
}

func msgKindSet(k timers.Kind) string {
	return fmt.Sprintf("Timer type set to %s.", kindLabel(k))
}

func msgTimerSet(k timers.Kind, minutes int64, dataset string) string {
	if k == timers.KindPeriodic {
		return fmt.Sprintf("Repeating timer set every %d minutes to fetch %s data.", minutes, dataset)
	}
	return fmt.Sprintf("One-time timer set for %d minutes to fetch %s data.", minutes, dataset)
}

func kindLabel(k timers.Kind) string {
	if k == timers.KindPeriodic {
		return "repeating"
	}
	return "one-time"
}
