package models

import "time"

// GeoPoint is a GeoJSON Point. Coordinates are [longitude, latitude],
// per the GeoJSON axis order.
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON Point from a latitude/longitude pair.
func NewGeoPoint(latitude, longitude float64) GeoPoint {
	return GeoPoint{
		Type:        "Point",
		Coordinates: [2]float64{longitude, latitude},
	}
}

// LocationSample is one raw position report for a device. Buffered samples
// carry only SampleTime; RecordedTime is set when a flush persists the row.
// The history table may hold duplicate rows for the same device and sample
// time because a failed flush re-buffers and a later flush re-inserts.
type LocationSample struct {
	DeviceID          string    `json:"device_id"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	Accuracy          float64   `json:"accuracy"`
	BatteryPercentage int       `json:"battery_percentage"`
	Type              string    `json:"type"`
	QuestionnaireData string    `json:"questionnaire_data"`
	SampleTime        time.Time `json:"sample_time"`
	RecordedTime      time.Time `json:"recorded_time,omitempty"`
}

// LatestLocation is one row of the merged "current location of everyone"
// view. Timestamp is the recorded time for rows read from the store and
// the sample time for rows still buffered; LastSeen is always the
// device-observed sample time.
type LatestLocation struct {
	DeviceID          string    `json:"device_id"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	Accuracy          float64   `json:"accuracy"`
	BatteryPercentage int       `json:"battery_percentage"`
	Type              string    `json:"type"`
	QuestionnaireData string    `json:"questionnaire_data"`
	Timestamp         time.Time `json:"timestamp"`
	LastSeen          time.Time `json:"last_seen"`
}

// StoreStats summarizes the persisted history and the live buffer.
type StoreStats struct {
	TotalLocations     int64      `json:"total_locations"`
	UniqueDevices      int64      `json:"unique_devices"`
	BufferedDevices    int        `json:"buffered_devices"`
	LatestLocationTime *time.Time `json:"latest_location_time"`
}
