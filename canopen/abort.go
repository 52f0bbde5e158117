package canopen

import "fmt"

// AbortCode is the reason a server gives for aborting an SDO transfer
type AbortCode uint32

const (
	AbortToggleBit          AbortCode = 0x05030000
	AbortTimeout            AbortCode = 0x05040000
	AbortCommandSpecifier   AbortCode = 0x05040001
	AbortOutOfMemory        AbortCode = 0x05040005
	AbortUnsupportedAccess  AbortCode = 0x06010000
	AbortWriteOnly          AbortCode = 0x06010001
	AbortReadOnly           AbortCode = 0x06010002
	AbortNoObject           AbortCode = 0x06020000
	AbortHardware           AbortCode = 0x06060000
	AbortTypeMismatch       AbortCode = 0x06070010
	AbortTypeTooLong        AbortCode = 0x06070012
	AbortTypeTooShort       AbortCode = 0x06070013
	AbortNoSubIndex         AbortCode = 0x06090011
	AbortInvalidValue       AbortCode = 0x06090030
	AbortValueTooHigh       AbortCode = 0x06090031
	AbortValueTooLow        AbortCode = 0x06090032
	AbortGeneral            AbortCode = 0x08000000
	AbortDataTransfer       AbortCode = 0x08000020
	AbortLocalControl       AbortCode = 0x08000021
	AbortDeviceState        AbortCode = 0x08000022
	AbortNoObjectDictionary AbortCode = 0x08000023
)

type FaultSeverity int

const (
	SeverityWarning FaultSeverity = iota
	SeverityCritical
)

type AbortConfig struct {
	Code        AbortCode
	Description string
	Severity    FaultSeverity
}

var abortConfigs = map[AbortCode]AbortConfig{
	AbortToggleBit:          {AbortToggleBit, "Toggle bit not alternated", SeverityWarning},
	AbortTimeout:            {AbortTimeout, "SDO protocol timed out", SeverityWarning},
	AbortCommandSpecifier:   {AbortCommandSpecifier, "Command specifier not valid or unknown", SeverityCritical},
	AbortOutOfMemory:        {AbortOutOfMemory, "Out of memory", SeverityCritical},
	AbortUnsupportedAccess:  {AbortUnsupportedAccess, "Unsupported access to an object", SeverityCritical},
	AbortWriteOnly:          {AbortWriteOnly, "Attempt to read a write only object", SeverityCritical},
	AbortReadOnly:           {AbortReadOnly, "Attempt to write a read only object", SeverityCritical},
	AbortNoObject:           {AbortNoObject, "Object does not exist in the object dictionary", SeverityCritical},
	AbortHardware:           {AbortHardware, "Access failed due to a hardware error", SeverityCritical},
	AbortTypeMismatch:       {AbortTypeMismatch, "Data type does not match, length of service parameter does not match", SeverityCritical},
	AbortTypeTooLong:        {AbortTypeTooLong, "Length of service parameter too high", SeverityCritical},
	AbortTypeTooShort:       {AbortTypeTooShort, "Length of service parameter too low", SeverityCritical},
	AbortNoSubIndex:         {AbortNoSubIndex, "Sub-index does not exist", SeverityCritical},
	AbortInvalidValue:       {AbortInvalidValue, "Invalid value for parameter", SeverityCritical},
	AbortValueTooHigh:       {AbortValueTooHigh, "Value of parameter written too high", SeverityCritical},
	AbortValueTooLow:        {AbortValueTooLow, "Value of parameter written too low", SeverityCritical},
	AbortGeneral:            {AbortGeneral, "General error", SeverityCritical},
	AbortDataTransfer:       {AbortDataTransfer, "Data cannot be transferred or stored to the application", SeverityCritical},
	AbortLocalControl:       {AbortLocalControl, "Data cannot be transferred because of local control", SeverityWarning},
	AbortDeviceState:        {AbortDeviceState, "Data cannot be transferred because of the present device state", SeverityWarning},
	AbortNoObjectDictionary: {AbortNoObjectDictionary, "Object dictionary not present", SeverityCritical},
}

func GetAbortConfig(code AbortCode) (AbortConfig, bool) {
	config, ok := abortConfigs[code]
	return config, ok
}

// GetAbortDescription returns a human-readable description of an abort code
func GetAbortDescription(code AbortCode) string {
	if config, ok := abortConfigs[code]; ok {
		return config.Description
	}
	return "Unknown abort code"
}

// AbortError is returned when the drive aborts a transfer
type AbortError struct {
	Code AbortCode
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("SDO abort 0x%08X: %s", uint32(e.Code), GetAbortDescription(e.Code))
}
