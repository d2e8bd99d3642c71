package alert

import (
	"gas-alert-bot/internal/types"
	"gas-alert-bot/lib/helpers"
	"gas-alert-bot/lib/translation"
)

// TransferGas is the gas used by a plain native-coin transfer
const TransferGas = 21000

// FormatNotification builds the MarkdownV2 text sent when an alert fires.
// usdPrice is the native coin price; zero leaves the cost line out.
func FormatNotification(a types.Alert, current, usdPrice float64) string {
	text := translation.Translate(
		"⛽ *Gas Alert Triggered*\n\n*%s* gas is now *%s Gwei*\nYour threshold: *%s Gwei*",
		helpers.EscapeMarkdownV2(a.Chain.DisplayName()),
		helpers.FormatFee(current, true),
		helpers.FormatFee(a.Threshold, true),
	)

	if usdPrice > 0 {
		text += translation.Translate(
			"\nA %s transfer costs about *$%s*",
			a.Chain.NativeSymbol(),
			helpers.FormatPriceUS(TransferCostUSD(current, usdPrice), true),
		)
	}
	return text
}

// TransferCostUSD converts a Gwei gas price into the USD cost of a transfer
func TransferCostUSD(gwei, usdPrice float64) float64 {
	return gwei * TransferGas / 1e9 * usdPrice
}
