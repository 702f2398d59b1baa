/*
 * Copyright (C) 2026 Simone Pezzano
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package external

import (
	"fmt"

	"github.com/theirish81/jsengine/backend"
)

const resultPrefix = `["result"`

// bootstrap wraps the program. It works on interpreters without globalThis, and on those exposing print
// instead of console.log. The last line it prints is always ["result", status, value].
const bootstrap = `Object.defineProperty(
    typeof globalThis !== 'undefined' ? globalThis : typeof global !== 'undefined' ? global : this,
    '__jsengine', {value: {}, writable: false, configurable: false}
);
Object.defineProperty(__jsengine, 'print', {
    value: (typeof console !== 'undefined' && typeof console.log === 'function')
        ? function (s) { console.log(s) }
        : function (s) { if (typeof print === 'function') { print(s) } },
    writable: false, configurable: false
});
Object.defineProperty(__jsengine, 'stringify', {value: JSON.stringify, writable: false, configurable: false});
Object.defineProperty(__jsengine, 'result', {value: null, writable: true, configurable: false});
Object.defineProperty(__jsengine, 'status', {value: false, writable: true, configurable: false});
try {
    __jsengine.result = eval(%s), __jsengine.status = true;
} catch (err) {
    __jsengine.result = String(err), __jsengine.status = false;
}
try {
    __jsengine.print('\n' + __jsengine.stringify(['result', __jsengine.status, __jsengine.result]));
} catch (err) {
    __jsengine.print('\n["result", false, "%s"]');
}
`

// Bootstrap wraps the source literal (a JSON-encoded string) into the script handed to the interpreter.
func Bootstrap(sourceLiteral string) string {
	return fmt.Sprintf(bootstrap, sourceLiteral, backend.UnsupportedTypeMessage)
}
