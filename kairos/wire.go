// Copyright (C) 2026 Mr5niper
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later


package kairos

import "encoding/base64"

func encodeSlice(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func decodeSlice(s string) ([]byte, bool) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func decode24(s string) ([24]byte, bool) {
	var out [24]byte
	raw, ok := decodeSlice(s)
	if !ok || len(raw) != 24 {
		return out, false
	}
	copy(out[:], raw)
	return out, true
}
