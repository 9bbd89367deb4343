// Package crc implements CRC-8 with polynomial 0x07, MSB first, init 0,
// no final xor. Peripheral firmware computes the same over command and data bytes.
package crc

const CRC_POLY_07 byte = 0x07

var tableP07 [256]byte

func init() {
	for i := 0; i < 256; i++ {
		tableP07[i] = CRC8_p07_reference(0, byte(i))
	}
}

// Bitwise implementation, used to build the lookup table and in tests.
func CRC8_p07_reference(crc, data byte) byte {
	crc ^= data
	var i byte = 0
	for ; i < 8; i++ {
		if (crc & 0x80) != 0 {
			crc <<= 1
			crc ^= CRC_POLY_07
		} else {
			crc <<= 1
		}
	}
	return crc
}

func CRC8_p07_next(crc, data byte) byte {
	return tableP07[crc^data]
}

func CRC8_p07_n(crc byte, data []byte) byte {
	for _, b := range data {
		crc = CRC8_p07_next(crc, b)
	}
	return crc
}
