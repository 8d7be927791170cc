package proc

// AMD64Arch returns an initialized Arch
// struct for the AMD64 architecture.
func AMD64Arch() *Arch {
	return &Arch{
		Name:                 "amd64",
		ptrSize:              8,
		maxInstructionLength: 15,
		decodeMode:           64,
		PCRegName:            "rip",
		asmDecode:            x86AsmDecode,
	}
}
