// Package firmware reads the static base addresses of a firmware image.
package firmware

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// Language selects the source-language flavor of the firmware, which decides
// the name of the vector-table section.
type Language string

const (
	LanguageRust Language = "rust"
	LanguageCPP  Language = "cpp"
)

// VectorSection returns the vector-table section name for the language.
func (l Language) VectorSection() (string, error) {
	switch l {
	case LanguageRust:
		return ".vector_table", nil
	case LanguageCPP:
		return ".isr_vector", nil
	default:
		return "", fmt.Errorf("unsupported firmware language %q", l)
	}
}

// StackTop extracts the initial stack-pointer value from the ELF image at
// path: the first 4 bytes, little-endian, of the vector-table section.
func StackTop(path string, lang Language) (uint32, error) {
	section, err := lang.VectorSection()
	if err != nil {
		return 0, err
	}

	file, err := elf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("error opening firmware image: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	sec := file.Section(section)
	if sec == nil {
		return 0, fmt.Errorf("section %s required in firmware image %s", section, path)
	}
	data, err := sec.Data()
	if err != nil {
		return 0, fmt.Errorf("error reading section %s: %w", section, err)
	}
	if len(data) < 4 {
		return 0, fmt.Errorf("section %s too short: %d bytes", section, len(data))
	}
	return binary.LittleEndian.Uint32(data[:4]), nil
}
