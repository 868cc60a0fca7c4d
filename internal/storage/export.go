package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/san-kum/batsim/internal/stepper"
)

type ExportData struct {
	Run     RunMetadata    `json:"run"`
	Windows []ExportWindow `json:"windows"`
}

type ExportWindow struct {
	Time         float64 `json:"time"`
	Current      float64 `json:"current"`
	Voltage      float64 `json:"voltage"`
	SOC          float64 `json:"soc"`
	Temperature  float64 `json:"temperature"`
	DischargedAh float64 `json:"discharged_ah"`
	Samples      int     `json:"samples"`
	Event        string  `json:"event,omitempty"`
}

func ExportJSON(w io.Writer, meta RunMetadata, records []stepper.Report) error {
	data := ExportData{
		Run:     meta,
		Windows: make([]ExportWindow, len(records)),
	}
	for i, r := range records {
		data.Windows[i] = ExportWindow{
			Time:         r.Time,
			Current:      r.AvgCurrentA,
			Voltage:      r.AvgVoltageV,
			SOC:          r.SOC,
			Temperature:  r.AvgTemperatureK,
			DischargedAh: r.DischargedAh,
			Samples:      r.Samples,
			Event:        r.Event,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// WriteCSV writes one row per window in the windows.csv layout.
func WriteCSV(w io.Writer, records []stepper.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(windowColumns); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			strconv.FormatFloat(r.Time, 'f', 6, 64),
			strconv.FormatFloat(r.AvgCurrentA, 'f', 6, 64),
			strconv.FormatFloat(r.AvgVoltageV, 'f', 6, 64),
			strconv.FormatFloat(r.SOC, 'f', 8, 64),
			strconv.FormatFloat(r.AvgTemperatureK, 'f', 6, 64),
			strconv.Itoa(r.Samples),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
