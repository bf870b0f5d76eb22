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

package cmdutil

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecRunner_OutputWithInput(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat is not available")
	}

	out, err := ExecRunner{}.OutputWithInput("nat on utun3\n", "cat")

	assert.NoError(t, err)
	assert.Equal(t, "nat on utun3\n", out)
}

func TestExecRunner_OutputReturnsErrorWithOutput(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}

	out, err := ExecRunner{}.Output("sh", "-c", "echo busy; exit 3")

	assert.Error(t, err)
	assert.Equal(t, "busy\n", out)
	assert.Contains(t, err.Error(), "busy")
}
