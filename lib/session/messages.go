// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"

	"github.com/bakhtin/ctf-tshirt/lib/tshirt"
)

// Wire texts. Every line ends in CRLF; the two y/n questions and the
// text prompts leave the cursor on the prompt line.
const (
	greetingText = "Welcome to the Fancy T-Shirts Shop!\r\nMake your own t-shirt print!\r\n"
	menuText     = "Please choose an action:\r\n1) Print constructor\r\n2) My orders\r\n3) Exit\r\n"
	farewellText = "See you later. Bye\r\n"

	colorPromptFormat     = "Choose the color of t-shirt:\r\nAvailable colors: %s\r\n"
	sizePromptFormat      = "Choose the size of t-shirt:\r\nAvailable sizes: %s\r\n"
	fontColorPromptFormat = "Choose the font color:\r\nAvailable colors: %s\r\n"
	frontPromptText       = "The text that will be printed on the t-shirt's front. You can leave it blank\r\n> "
	backPromptText        = "The text that will be printed on the t-shirt's back. You can leave it blank\r\n> "

	colorChosenFormat     = "Color: %s\r\n"
	sizeChosenFormat      = "Size: %s\r\n"
	fontColorChosenFormat = "Font color: %s\r\n"

	invalidColorText     = "Not a valid color. Pick one from available\r\n"
	invalidSizeText      = "Not a valid size. Pick one from available\r\n"
	invalidFontColorText = "Not a valid font color. Pick one from available\r\n"
	invalidTextFormat    = "Not a valid text. Use at most %d printable characters\r\n"

	summaryFormat     = "T-shirt: %s\r\n"
	confirmPromptText = "Would you like to place the order? (y/n)  "
	orderPlacedFormat = "You successfully placed the order. Order #%d.\r\nYou will need it to pick up the t-shirt\r\n"
	renderFailedText  = "Sorry, we could not build the print. Please try again later\r\n"

	ordersHeaderText     = "Your orders\r\n"
	orderSeparatorText   = "-----------\r\n"
	orderEntryFormat     = "Order id: %d\r\n\t parameters: %s\r\n\t date: %s\r\n"
	orderStatusFormat    = "Status: %s\r\n"
	unreadableDesignText = "(design unavailable)"

	payPromptText       = "Would you like to pay the order with a coupon?  (y/n)  "
	payDeclinedText     = "\r\nOkay. You can always pay cash on a pick up\r\n"
	orderSelectText     = "\r\nChoose the order ID to pay for: \r\n"
	couponPromptText    = "Please, enter coupon code to pay with: \r\n"
	paidPrefix          = "You successfully paid the order. Your secret is: "
	wrongCouponFormat   = "Wrong coupon code. Try again. You have %d attempts remaining\r\n"
	couponExhaustedText = "Wrong coupon code. You have no attempts remaining\r\n"
	notPayableText      = "Not a valid order ID or already paid\r\n"

	timeoutText       = "\r\nSession timed out. Bye\r\n"
	shutdownText      = "\r\nThe shop is closing. Bye\r\n"
	lineTooLongFormat = "Input too long. At most %d bytes per line\r\n"
)

// UnavailableText is the last line a peer sees when the shop cannot
// serve it.
const UnavailableText = "Sorry, the shop is unavailable right now. Bye\r\n"

// dateLayout renders created_at with microseconds, in UTC.
const dateLayout = "2006-01-02 15:04:05.000000"

func colorPrompt() string     { return fmt.Sprintf(colorPromptFormat, tshirt.ColorMenu()) }
func sizePrompt() string      { return fmt.Sprintf(sizePromptFormat, tshirt.SizeMenu()) }
func fontColorPrompt() string { return fmt.Sprintf(fontColorPromptFormat, tshirt.ColorMenu()) }
