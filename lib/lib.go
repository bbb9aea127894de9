/*package lib contains the configuration and mode logic of the amrio command.
Arguments are read from an optional config file and from the command line,
merged with RawArgs.Overwrite, and converted into Args by RawArgs.Process.
The heavy lifting is done by lib/'s subpackages.
*/
package lib

import (
	"encoding/binary"
	"unsafe"
)

// Version is the version of the software.
var Version = "0.1.0"

// SystemByteOrder returns the byte order of the machine amrio is running on.
func SystemByteOrder() binary.ByteOrder {
	b := [2]byte{}
	*(*uint16)(unsafe.Pointer(&b[0])) = uint16(0x0001)
	if b[0] == 0 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
