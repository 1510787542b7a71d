// Package device implements the per-robot state machine: held state,
// the periodic uplink reporter, and downlink command dispatch.
package device

import "solarfleet-sim/internal/pkg/alarm"

// LoraParams holds the LoRa radio parameters settable via identifier 0xA4.
type LoraParams struct {
	Power     byte
	Frequency uint32
	Rate      byte
}

// MotorParams holds motor/protection configuration, mirrored in shape
// from the original RobotData record.
type MotorParams struct {
	WalkSpeed          byte
	BrushSpeed         byte
	WindproofSpeed     byte
	MaxCurrent         uint16
	WarningCurrent     uint16
	Mileage            uint32
	TimeoutSeconds     uint16
	ReverseTimeSeconds uint16
	ProtectionAngle    byte
}

// TempVoltageProtection holds the thermal/voltage protection thresholds.
type TempVoltageProtection struct {
	ProtectionTempC     int8
	HighTempC           int8
	LowTempC            int8
	RecoveryTempC       int8
	ProtectionVoltage   uint16
	RecoveryVoltage     uint16
	ProtectionLevel     byte
	LimitLevel          byte
	RecoveryLevel       byte
	BoardProtectionTemp int8
	BoardRecoveryTemp   int8
}

// defaultMotorParams returns the factory-default motor/protection
// configuration a freshly provisioned device reports, mirroring the
// original RobotData record's defaults.
func defaultMotorParams() MotorParams {
	return MotorParams{
		WalkSpeed:          50,
		BrushSpeed:         80,
		WindproofSpeed:     30,
		MaxCurrent:         3000,
		WarningCurrent:     2500,
		Mileage:            0,
		TimeoutSeconds:     300,
		ReverseTimeSeconds: 5,
		ProtectionAngle:    15,
	}
}

// defaultTempVoltageProtection returns the factory-default thermal and
// voltage protection thresholds.
func defaultTempVoltageProtection() TempVoltageProtection {
	return TempVoltageProtection{
		ProtectionTempC:     65,
		HighTempC:           55,
		LowTempC:            -20,
		RecoveryTempC:       45,
		ProtectionVoltage:   2200,
		RecoveryVoltage:     2400,
		ProtectionLevel:     20,
		LimitLevel:          15,
		RecoveryLevel:       30,
		BoardProtectionTemp: 70,
		BoardRecoveryTemp:   50,
	}
}

// LocalTime is the device's onboard clock, set by 0xF0/0xF1/0xF2 replies.
type LocalTime struct {
	Year, Month, Day     int
	Hour, Minute, Second int
	Weekday              int
}

// EnvironmentInfo holds ambient sensor readings updated alongside LocalTime.
type EnvironmentInfo struct {
	SensorTemperature  float64
	SensorHumidity     float64
	AmbientTemperature float64
	DayNightStatus     byte
}

// ScheduleTask is one entry of a device's cleaning schedule.
type ScheduleTask struct {
	ID       byte
	Weekday  byte
	Hour     byte
	Minute   byte
	RunCount byte
}

// CleaningRecord is one completed cleaning pass, bounded to the most
// recent 5 per device.
type CleaningRecord struct {
	StartUnixSeconds int64
	DurationSeconds  uint32
	AreaCoveredM2    float64
}

const maxCleaningRecords = 5

// State is the full held-state record for a device, updated only by
// downlink commands or the periodic reporter's own initializers —
// never by simulated physics.
type State struct {
	// Power
	MainMotorCurrent   int
	SlaveMotorCurrent  int
	BatteryVoltage     int
	BatteryCurrent     int
	BatteryStatus      byte
	BatteryLevel       byte
	BatteryTemperature int8

	// Solar
	SolarVoltage int
	SolarCurrent int

	// Motion / position
	WorkingDuration uint32
	TotalRunCount   uint32

	// Board
	BoardTemperature int8

	// Identity / config
	Lora                LoraParams
	RobotNumber         uint16
	SoftwareVersion     string
	DaytimeScanProtect  bool
	ModuleEUI           string
	DomesticForeignFlag byte
	CountryCode         uint16
	RegionCode          uint16
	ProjectCode         uint16

	// Schedule and history
	ScheduleTasks   []ScheduleTask
	CleaningRecords []CleaningRecord

	// Fields carried in a 0xF0/0xF1 start-reply payload alongside the
	// time and environment blocks.
	WindLevel  byte
	BoxCount   byte
	RobotCount byte

	// Motor / protection config
	Motor    MotorParams
	TempProt TempVoltageProtection

	LocalTime   LocalTime
	Environment EnvironmentInfo

	AlarmFA alarm.FA
	AlarmFB alarm.FB
	AlarmFC alarm.FC
	AlarmFD alarm.FD
}

// AddCleaningRecord appends a completed pass, evicting the oldest
// entry once the list would exceed maxCleaningRecords.
func (s *State) AddCleaningRecord(r CleaningRecord) {
	s.CleaningRecords = append(s.CleaningRecords, r)
	if len(s.CleaningRecords) > maxCleaningRecords {
		s.CleaningRecords = s.CleaningRecords[len(s.CleaningRecords)-maxCleaningRecords:]
	}
}

// applyEnvironmentBlock decodes the 7-byte ambient sensor block carried
// in a 0xF0/0xF1 start reply: two signed tenths-of-a-degree C readings,
// one tenths-of-a-percent humidity reading, and a day/night status byte.
func (s *State) applyEnvironmentBlock(b []byte) {
	s.Environment = EnvironmentInfo{
		SensorTemperature:  float64(int16(uint16(b[0])<<8|uint16(b[1]))) / 10,
		SensorHumidity:     float64(uint16(b[2])<<8|uint16(b[3])) / 10,
		AmbientTemperature: float64(int16(uint16(b[4])<<8|uint16(b[5]))) / 10,
		DayNightStatus:     b[6],
	}
}

// applyProtectionNibble decodes the low four bits of a protection_info
// byte into the corresponding AlarmFC protection flags.
func (s *State) applyProtectionNibble(b byte) {
	s.AlarmFC = alarm.Set(s.AlarmFC, alarm.FCWindProtection, b&0x01 != 0)
	s.AlarmFC = alarm.Set(s.AlarmFC, alarm.FCHumidityProtection, b&0x02 != 0)
	s.AlarmFC = alarm.Set(s.AlarmFC, alarm.FCBracketProtection, b&0x04 != 0)
	s.AlarmFC = alarm.Set(s.AlarmFC, alarm.FCAmbientTempProtection, b&0x08 != 0)
}
