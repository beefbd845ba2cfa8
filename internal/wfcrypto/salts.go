package wfcrypto

// Fixed HKDF salts per encryption method (spec §4.2: method 1 "8ddb03…be0c0",
// method 2 "c4d028…97b56"). Distinct salts cryptographically separate
// method-1 and method-2 key derivation even when the same ECDH secret or
// pre-shared key is reused across both.
var (
	negotiatedSalt = mustDecodeHex("8ddb030b30557a9fc4e90e33587da2c7ec11365b80a5caef14395e83a8cbe0c0")
	presharedSalt  = mustDecodeHex("c4d0280b30557a9fc4e90e33587da2c7ec11365b80a5caef14395e83a8c97b56")
)
