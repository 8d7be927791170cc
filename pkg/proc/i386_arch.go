package proc

// I386Arch returns an initialized Arch
// struct for the 386 architecture.
func I386Arch() *Arch {
	return &Arch{
		Name:                 "386",
		ptrSize:              4,
		maxInstructionLength: 15,
		decodeMode:           32,
		PCRegName:            "eip",
		asmDecode:            x86AsmDecode,
	}
}
