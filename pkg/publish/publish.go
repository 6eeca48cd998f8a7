// Package publish posts finished sweep records as JSON to a webhook endpoint.
package publish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/kacperjurak/goimpsweep"
)

// Payload is the wire form of a sweep record. Matrices are row-major slices,
// rows indexed by intensity.
type Payload struct {
	Label          string      `json:"label"`
	Time           string      `json:"time"`
	Intensities    []float64   `json:"intensities"`
	Voc            []float64   `json:"open_circuit_voltages"`
	SunIndex       int         `json:"sun_index"`
	DeltaV         float64     `json:"delta_v"`
	Frequencies    [][]float64 `json:"frequencies"`
	Bias           [][]float64 `json:"bias"`
	Amplitude      [][]float64 `json:"amplitude"`
	Phase          [][]float64 `json:"phase"`
	ImpedanceMag   [][]float64 `json:"impedance_magnitude"`
	ImpedanceReal  [][]float64 `json:"impedance_real"`
	ImpedanceImag  [][]float64 `json:"impedance_imaginary"`
	Capacitance    [][]float64 `json:"capacitance"`
	Attempts       [][]float64 `json:"attempts"`
	Flagged        [][]float64 `json:"flagged"`
	IonicAmplitude [][]float64 `json:"ionic_amplitude,omitempty"`
	IonicPhase     [][]float64 `json:"ionic_phase,omitempty"`
}

// Client sends sweep records over a pooled HTTP transport.
type Client struct {
	url        string
	httpClient *http.Client
	bufferPool sync.Pool
}

// NewClient creates a webhook client with connection pooling tuned for small
// JSON payloads.
func NewClient(url string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		DisableCompression:    true,
	}

	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout:   45 * time.Second,
			Transport: transport,
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 4096))
			},
		},
	}
}

// Send posts one finished sweep record. Non-finite matrix entries (the
// derivation stage propagates Inf/NaN on degenerate amplitudes) are sanitized
// to zero at this boundary only, since JSON cannot carry them.
func (c *Client) Send(label string, res *goimpsweep.SweepResult) error {
	payload := Payload{
		Label:         label,
		Time:          time.Now().Format(time.RFC3339Nano),
		Intensities:   res.Intensities,
		Voc:           res.Voc,
		SunIndex:      res.SunIndex,
		DeltaV:        res.DeltaV,
		Frequencies:   matrixRows(res.Freqs),
		Bias:          matrixRows(res.Total.Bias),
		Amplitude:     matrixRows(res.Total.Amplitude),
		Phase:         matrixRows(res.Total.Phase),
		ImpedanceMag:  matrixRows(res.Total.Impedance.Magnitude),
		ImpedanceReal: matrixRows(res.Total.Impedance.Real),
		ImpedanceImag: matrixRows(res.Total.Impedance.Imag),
		Capacitance:   matrixRows(res.Total.Impedance.Capacitance),
		Attempts:      matrixRows(res.Attempts),
		Flagged:       matrixRows(res.Flagged),
	}
	if res.Ionic != nil {
		payload.IonicAmplitude = matrixRows(res.Ionic.Amplitude)
		payload.IonicPhase = matrixRows(res.Ionic.Phase)
	}

	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return fmt.Errorf("publish: marshal result: %w", err)
	}

	resp, err := c.httpClient.Post(c.url, "application/json", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("publish: send result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("publish: result rejected with status %d", resp.StatusCode)
	}
	log.Printf("publish: sent result %q (%d intensities), status %d", label, len(res.Intensities), resp.StatusCode)
	return nil
}

// matrixRows copies a matrix into sanitized row slices.
func matrixRows(m *mat.Dense) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			out[i][j] = sanitizeFloat(m.At(i, j))
		}
	}
	return out
}

// sanitizeFloat cleans float64 values for JSON compatibility.
func sanitizeFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
