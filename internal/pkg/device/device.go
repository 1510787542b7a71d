package device

import (
	"fmt"
	"sync"
	"time"

	"solarfleet-sim/internal/pkg/alarm"
	"solarfleet-sim/internal/pkg/codec"
	"solarfleet-sim/internal/pkg/envelope"
	"solarfleet-sim/internal/pkg/logger"
)

// Identifiers for uplink/downlink payloads, first byte of Frame.Payload.
const (
	IdentifierPeriodicReport   byte = 0xA1
	IdentifierSetLoraParams    byte = 0xA4
	IdentifierCleaningRecords  byte = 0xE9
	IdentifierScheduledStart   byte = 0xF0
	IdentifierStart            byte = 0xF1
	IdentifierTimeSync         byte = 0xF2
)

const defaultReportInterval = 10 * time.Second

// Publisher is the non-owning link a Device holds back to its owning
// Fleet Manager: enough surface to push a frame, nothing more.
type Publisher interface {
	Enqueue(topic string, payload []byte, qos byte) error
}

// AlarmState groups the four alarm bitmasks a Device is seeded with
// from the roster row that spawned it (spec.md §3's Roster entry
// fields alarm_fa..alarm_fd).
type AlarmState struct {
	FA alarm.FA
	FB alarm.FB
	FC alarm.FC
	FD alarm.FD
}

// Device is one simulated robot: identity, held state, frame counter,
// and a cancellable periodic reporter.
type Device struct {
	EUI          string
	Number       uint16
	PublishTopic string
	QoS          byte

	createdAt time.Time
	lc        logger.LoggingClient
	publisher Publisher

	mu      sync.RWMutex
	state   State
	counter byte

	stopOnce sync.Once
	stopCh   chan struct{}
	stopped  chan struct{}
}

// New constructs a Device, seeding its alarm bitmasks from the
// roster row that spawned it. The reporter is not started until Start
// is called.
func New(eui string, number uint16, publishTopic string, qos byte, alarms AlarmState, publisher Publisher, lc logger.LoggingClient) *Device {
	return &Device{
		EUI:          eui,
		Number:       number,
		PublishTopic: publishTopic,
		QoS:          qos,
		createdAt:    time.Now(),
		lc:           lc,
		publisher:    publisher,
		stopCh:       make(chan struct{}),
		stopped:      make(chan struct{}),
		state: State{
			RobotNumber:         number,
			SoftwareVersion:     "1.0.0",
			DaytimeScanProtect:  true,
			ModuleEUI:           eui,
			DomesticForeignFlag: 0,
			CountryCode:         86,
			RegionCode:          0,
			ProjectCode:         1,
			Motor:               defaultMotorParams(),
			TempProt:            defaultTempVoltageProtection(),
			AlarmFA:             alarms.FA,
			AlarmFB:             alarms.FB,
			AlarmFC:             alarms.FC,
			AlarmFD:             alarms.FD,
		},
	}
}

// Start launches the periodic reporter goroutine, polling a cancel
// flag at 100ms granularity so Stop returns promptly.
func (d *Device) Start(interval time.Duration) {
	if interval <= 0 {
		interval = defaultReportInterval
	}
	go d.reportLoop(interval)
}

func (d *Device) reportLoop(interval time.Duration) {
	defer close(d.stopped)

	const pollEvery = 100 * time.Millisecond
	elapsed := interval // fire the first tick immediately after interval, matching original cadence

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			elapsed -= pollEvery
			if elapsed > 0 {
				continue
			}
			elapsed = interval
			if err := d.reportOnce(); err != nil {
				d.lc.Warn(fmt.Sprintf("device %s: report failed: %v", d.EUI, err))
			}
		}
	}
}

// Stop signals the reporter to exit and waits for it to do so.
func (d *Device) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.stopped
}

func (d *Device) nextCounter() byte {
	d.mu.Lock()
	c := d.counter
	d.counter++
	d.mu.Unlock()
	return c
}

func (d *Device) publish(control byte, identifier byte, params []byte) error {
	payload := append([]byte{identifier}, params...)
	frame, err := codec.Encode(control, d.Number, d.nextCounter(), payload)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	env := envelope.Wrap(d.EUI, frame)
	return d.publisher.Enqueue(d.PublishTopic, envelope.Marshal(env), d.QoS)
}

// reportOnce builds and enqueues one periodic uplink status report,
// refreshing WorkingDuration from the device's creation time first.
func (d *Device) reportOnce() error {
	d.mu.Lock()
	d.state.WorkingDuration = uint32(time.Since(d.createdAt) / time.Second)
	s := d.state
	d.mu.Unlock()

	params := []byte{
		s.BatteryLevel,
		byte(s.BatteryVoltage >> 8), byte(s.BatteryVoltage),
		byte(s.SolarVoltage >> 8), byte(s.SolarVoltage),
		byte(s.SolarCurrent >> 8), byte(s.SolarCurrent),
		byte(s.BoardTemperature),
		byte(s.WorkingDuration >> 8), byte(s.WorkingDuration),
	}
	return d.publish(codec.ControlUplink, IdentifierPeriodicReport, params)
}

// HandleFrame dispatches a decoded downlink frame on its identifier byte.
func (d *Device) HandleFrame(f *codec.Frame) error {
	if len(f.Payload) == 0 {
		return fmt.Errorf("device %s: empty payload", d.EUI)
	}
	identifier := f.Payload[0]
	params := f.Payload[1:]

	switch identifier {
	case IdentifierSetLoraParams:
		return d.handleSetLoraParams(params)
	case IdentifierCleaningRecords:
		return d.handleCleaningRecordsRequest()
	case IdentifierScheduledStart:
		return d.handleStartReply(params, true)
	case IdentifierStart:
		return d.handleStartReply(params, false)
	case IdentifierTimeSync:
		return d.handleTimeSyncReply(params)
	default:
		d.lc.Warn(fmt.Sprintf("device %s: unknown identifier 0x%02X, dropping", d.EUI, identifier))
		return nil
	}
}

func (d *Device) handleSetLoraParams(params []byte) error {
	if len(params) < 3 {
		return fmt.Errorf("device %s: 0xA4 payload too short", d.EUI)
	}
	if len(params) > 3 {
		d.lc.Warn(fmt.Sprintf("device %s: 0xA4 has trailing bytes, ignoring", d.EUI))
	}

	d.mu.Lock()
	d.state.Lora = LoraParams{
		Power:     params[0],
		Frequency: uint32(params[1]) * 1000,
		Rate:      params[2],
	}
	d.mu.Unlock()

	// emit a confirmation report
	return d.publish(codec.ControlUplink, IdentifierSetLoraParams, params[:3])
}

func (d *Device) handleCleaningRecordsRequest() error {
	d.mu.RLock()
	records := append([]CleaningRecord(nil), d.state.CleaningRecords...)
	d.mu.RUnlock()

	params := make([]byte, 0, 1+len(records)*8)
	params = append(params, byte(len(records)))
	for _, r := range records {
		params = append(params,
			byte(r.StartUnixSeconds>>24), byte(r.StartUnixSeconds>>16), byte(r.StartUnixSeconds>>8), byte(r.StartUnixSeconds),
			byte(r.DurationSeconds>>24), byte(r.DurationSeconds>>16), byte(r.DurationSeconds>>8), byte(r.DurationSeconds),
		)
	}
	return d.publish(codec.ControlUplink, IdentifierCleaningRecords, params)
}

const (
	// startReplyMinLen covers the 0xF0/0xF1 start-reply layout: 6-byte
	// time block (offsets 0-5), wind level (6), box count (7), robot
	// count (8), 7-byte environment block (9-15), and protection_info
	// as the last byte (16).
	startReplyMinLen    = 17
	timeSyncReplyMinLen = 13
)

// handleStartReply parses the shared 0xF0/0xF1 layout and, per the
// identifier table, updates both local_time and environment: the time
// block, wind/box-count/robot-count fields, the ambient sensor block,
// and the protection_info nibble.
func (d *Device) handleStartReply(params []byte, scheduled bool) error {
	if len(params) < startReplyMinLen {
		return fmt.Errorf("device %s: start reply payload too short", d.EUI)
	}
	if len(params) > startReplyMinLen {
		d.lc.Warn(fmt.Sprintf("device %s: start reply has trailing bytes, ignoring", d.EUI))
	}
	d.applyTimeBlock(params)

	d.mu.Lock()
	d.state.WindLevel = params[6]
	d.state.BoxCount = params[7]
	d.state.RobotCount = params[8]
	d.state.applyEnvironmentBlock(params[9:16])
	d.state.applyProtectionNibble(params[16])
	d.mu.Unlock()
	return nil
}

// handleTimeSyncReply parses the 0xF2 layout: it requires at least
// timeSyncReplyMinLen (13) bytes but reads only the leading 6-byte time
// block; the remaining bytes are not interpreted. There is no start_flag,
// environment block, or protection byte — the identifier table gives
// 0xF2 no effect beyond updating local_time.
func (d *Device) handleTimeSyncReply(params []byte) error {
	if len(params) < timeSyncReplyMinLen {
		return fmt.Errorf("device %s: time-sync payload too short", d.EUI)
	}
	if len(params) > timeSyncReplyMinLen {
		d.lc.Warn(fmt.Sprintf("device %s: time-sync reply has trailing bytes, ignoring", d.EUI))
	}
	d.applyTimeBlock(params)
	return nil
}

func (d *Device) applyTimeBlock(params []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.LocalTime = LocalTime{
		Year:    2000 + int(params[0]),
		Month:   int(params[1]),
		Day:     int(params[2]),
		Hour:    int(params[3]),
		Minute:  int(params[4]),
		Second:  int(params[5]),
		Weekday: int(params[0]) % 7,
	}
}

// SendScheduleStart builds and enqueues an operator-triggered
// scheduled-start request (identifier 0xF0, control code 0x82 per the
// design note preserving the original's observed behavior).
func (d *Device) SendScheduleStart(id, weekday, hour, minute, runCount byte) error {
	d.mu.Lock()
	d.state.ScheduleTasks = append(d.state.ScheduleTasks, ScheduleTask{
		ID:       id,
		Weekday:  weekday,
		Hour:     hour,
		Minute:   minute,
		RunCount: runCount,
	})
	d.mu.Unlock()

	params := []byte{id, weekday, hour, minute, runCount}
	return d.publish(codec.ControlDownlink, IdentifierScheduledStart, params)
}

// SendStart builds and enqueues an operator-triggered start request.
func (d *Device) SendStart() error {
	return d.publish(codec.ControlDownlink, IdentifierStart, nil)
}

// SendTimeSync builds and enqueues an operator-triggered time-sync request.
func (d *Device) SendTimeSync() error {
	return d.publish(codec.ControlDownlink, IdentifierTimeSync, nil)
}

// Describe returns a consistent, point-in-time snapshot of the
// device's state for admin consumption, keyed in English lowerCamelCase.
func (d *Device) Describe() map[string]interface{} {
	d.mu.RLock()
	s := d.state
	counter := d.counter
	d.mu.RUnlock()

	records := make([]map[string]interface{}, len(s.CleaningRecords))
	for i, r := range s.CleaningRecords {
		records[i] = map[string]interface{}{
			"startUnixSeconds": r.StartUnixSeconds,
			"durationSeconds":  r.DurationSeconds,
			"areaCoveredM2":    r.AreaCoveredM2,
		}
	}

	tasks := make([]map[string]interface{}, len(s.ScheduleTasks))
	for i, t := range s.ScheduleTasks {
		tasks[i] = map[string]interface{}{
			"id":       t.ID,
			"weekday":  t.Weekday,
			"hour":     t.Hour,
			"minute":   t.Minute,
			"runCount": t.RunCount,
		}
	}

	return map[string]interface{}{
		"devEui":              d.EUI,
		"deviceNumber":        d.Number,
		"frameCounter":        counter,
		"workingDurationSec":  s.WorkingDuration,
		"totalRunCount":       s.TotalRunCount,
		"mainMotorCurrent":    s.MainMotorCurrent,
		"slaveMotorCurrent":   s.SlaveMotorCurrent,
		"batteryVoltage":      s.BatteryVoltage,
		"batteryCurrent":      s.BatteryCurrent,
		"batteryStatus":       s.BatteryStatus,
		"batteryLevel":        s.BatteryLevel,
		"batteryTemperature":  s.BatteryTemperature,
		"solarVoltage":        s.SolarVoltage,
		"solarCurrent":        s.SolarCurrent,
		"boardTemperature":    s.BoardTemperature,
		"robotNumber":         s.RobotNumber,
		"softwareVersion":     s.SoftwareVersion,
		"daytimeScanProtect":  s.DaytimeScanProtect,
		"moduleEui":           s.ModuleEUI,
		"domesticForeignFlag": s.DomesticForeignFlag,
		"countryCode":         s.CountryCode,
		"regionCode":          s.RegionCode,
		"projectCode":         s.ProjectCode,
		"loraParams": map[string]interface{}{
			"power":     s.Lora.Power,
			"frequency": s.Lora.Frequency,
			"rate":      s.Lora.Rate,
		},
		"motor": map[string]interface{}{
			"walkSpeed":          s.Motor.WalkSpeed,
			"brushSpeed":         s.Motor.BrushSpeed,
			"windproofSpeed":     s.Motor.WindproofSpeed,
			"maxCurrent":         s.Motor.MaxCurrent,
			"warningCurrent":     s.Motor.WarningCurrent,
			"mileage":            s.Motor.Mileage,
			"timeoutSeconds":     s.Motor.TimeoutSeconds,
			"reverseTimeSeconds": s.Motor.ReverseTimeSeconds,
			"protectionAngle":    s.Motor.ProtectionAngle,
		},
		"tempProtection": map[string]interface{}{
			"protectionTempC":     s.TempProt.ProtectionTempC,
			"highTempC":           s.TempProt.HighTempC,
			"lowTempC":            s.TempProt.LowTempC,
			"recoveryTempC":       s.TempProt.RecoveryTempC,
			"protectionVoltage":   s.TempProt.ProtectionVoltage,
			"recoveryVoltage":     s.TempProt.RecoveryVoltage,
			"protectionLevel":     s.TempProt.ProtectionLevel,
			"limitLevel":          s.TempProt.LimitLevel,
			"recoveryLevel":       s.TempProt.RecoveryLevel,
			"boardProtectionTemp": s.TempProt.BoardProtectionTemp,
			"boardRecoveryTemp":   s.TempProt.BoardRecoveryTemp,
		},
		"localTime": map[string]interface{}{
			"year": s.LocalTime.Year, "month": s.LocalTime.Month, "day": s.LocalTime.Day,
			"hour": s.LocalTime.Hour, "minute": s.LocalTime.Minute, "second": s.LocalTime.Second,
		},
		"environment": map[string]interface{}{
			"sensorTemperature":  s.Environment.SensorTemperature,
			"sensorHumidity":     s.Environment.SensorHumidity,
			"ambientTemperature": s.Environment.AmbientTemperature,
			"dayNightStatus":     s.Environment.DayNightStatus,
		},
		"windLevel":  s.WindLevel,
		"boxCount":   s.BoxCount,
		"robotCount": s.RobotCount,
		"alarmFA":               s.AlarmFA,
		"alarmFB":               s.AlarmFB,
		"alarmFC":               s.AlarmFC,
		"alarmFD":               s.AlarmFD,
		"windProtection":        alarm.Has(s.AlarmFC, alarm.FCWindProtection),
		"humidityProtection":    alarm.Has(s.AlarmFC, alarm.FCHumidityProtection),
		"bracketProtection":     alarm.Has(s.AlarmFC, alarm.FCBracketProtection),
		"ambientTempProtection": alarm.Has(s.AlarmFC, alarm.FCAmbientTempProtection),
		"cleaningRecords":       records,
		"scheduleTasks":         tasks,
		"createdAt":             d.createdAt.Unix(),
	}
}
