package csc

// Cycling Speed and Cadence service and characteristics
const (
	ServiceUUIDCyclingSpeedCadence = "00001816-0000-1000-8000-00805f9b34fb"
	CharUUIDCSCMeasurement         = "00002a5b-0000-1000-8000-00805f9b34fb"
	CharUUIDCSCFeature             = "00002a5c-0000-1000-8000-00805f9b34fb"
)

// CSC Measurement flags
const (
	flagWheelRevolutionDataPresent byte = 0x01
	flagCrankRevolutionDataPresent byte = 0x02
)

// CSC Feature flags
const (
	featureWheelRevolutionData    uint16 = 0x0001
	featureCrankRevolutionData    uint16 = 0x0002
	featureMultipleSensorLocation uint16 = 0x0004
)

const (
	wheelDataLength = 6 // UINT32 revolutions + UINT16 event time
	crankDataLength = 4 // UINT16 revolutions + UINT16 event time
)
