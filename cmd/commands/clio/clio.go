/*
 * Copyright (C) 2026 The "tunshare" Authors.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package clio

import (
	"fmt"
	"io"
	"os"
	"unicode"
)

const statusColor = "\033[33m"
const warningColor = "\033[31m"
const successColor = "\033[32m"
const infoColor = "\033[93m"
const resetColor = "\033[0m"

// Output receives everything printed by this package.
var Output io.Writer = os.Stdout

// Status prints a message with a given status.
func Status(label string, items ...interface{}) {
	fmt.Fprintf(Output, statusColor+"[%s] "+resetColor, label)
	fmt.Fprintln(Output, sentenceCase(fmt.Sprint(items...)))
}

// Warn prints a warning.
func Warn(items ...interface{}) {
	fmt.Fprint(Output, warningColor+"[WARNING] "+resetColor)
	fmt.Fprintln(Output, sentenceCase(fmt.Sprint(items...)))
}

// Warnf prints a warning using fmt.Printf.
func Warnf(format string, items ...interface{}) {
	fmt.Fprint(Output, warningColor+"[WARNING] "+resetColor)
	fmt.Fprint(Output, sentenceCase(fmt.Sprintf(format, items...)))
}

// Success prints a success message.
func Success(items ...interface{}) {
	fmt.Fprint(Output, successColor+"[SUCCESS] "+resetColor)
	fmt.Fprintln(Output, sentenceCase(fmt.Sprint(items...)))
}

// Info prints an information message.
func Info(items ...interface{}) {
	fmt.Fprint(Output, infoColor+"[INFO] "+resetColor)
	fmt.Fprintln(Output, sentenceCase(fmt.Sprint(items...)))
}

// Infof prints an information message using fmt.Printf.
func Infof(format string, items ...interface{}) {
	fmt.Fprint(Output, infoColor+"[INFO] "+resetColor)
	fmt.Fprint(Output, sentenceCase(fmt.Sprintf(format, items...)))
}

// Error prints an error message
func Error(items ...interface{}) {
	fmt.Fprint(Output, warningColor+"[ERROR] "+resetColor)
	fmt.Fprintln(Output, sentenceCase(fmt.Sprint(items...)))
}

// sentenceCase capitalizes the first letter.
func sentenceCase(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	return string(unicode.ToUpper(runes[0])) + string(runes[1:])
}
