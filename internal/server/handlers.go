package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gyeh/cantonhealth/internal/dashboard"
	"github.com/gyeh/cantonhealth/internal/pipeline"
)

const pdfTitle = "Cantones de Costa Rica: población y hospitales"

// result loads the pipeline result, writing a 500 on failure.
func (s *Server) result(c *gin.Context) (*pipeline.Result, bool) {
	res, err := s.results.Get(c.Request.Context(), s.cfg.Sources())
	if err != nil {
		s.log.Error().Err(err).Msg("pipeline failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return res, true
}

func selection(c *gin.Context) dashboard.Selection {
	return dashboard.NewSelection(c.Query("province"), c.Query("canton"))
}

// threshold parses the threshold query parameter, falling back to the
// configured value.
func (s *Server) threshold(c *gin.Context) (float64, bool) {
	t := s.cfg.SaturationThreshold
	if t == 0 {
		t = dashboard.DefaultThreshold
	}
	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold parameter"})
			return 0, false
		}
		t = v
	}
	if err := dashboard.ValidateThreshold(t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}
	return t, true
}

func (s *Server) handleProvinces(c *gin.Context) {
	res, ok := s.result(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"provinces": dashboard.Provinces(res.Districts)})
}

func (s *Server) handleCantons(c *gin.Context) {
	res, ok := s.result(c)
	if !ok {
		return
	}
	sel := dashboard.NewSelection(c.Query("province"), "")
	c.JSON(http.StatusOK, gin.H{"cantons": dashboard.Cantons(res.Districts, sel.Province)})
}

func (s *Server) handleDistricts(c *gin.Context) {
	res, ok := s.result(c)
	if !ok {
		return
	}
	rows := dashboard.Table(dashboard.FilterDistricts(res.Districts, selection(c)))
	c.JSON(http.StatusOK, gin.H{"districts": rows, "count": len(rows)})
}

func (s *Server) handleDistrictsCSV(c *gin.Context) {
	res, ok := s.result(c)
	if !ok {
		return
	}
	rows := dashboard.Table(dashboard.FilterDistricts(res.Districts, selection(c)))

	var buf bytes.Buffer
	if err := dashboard.WriteCSV(&buf, rows); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	download(c, "text/csv; charset=utf-8", dashboard.CSVFileName, buf.Bytes())
}

func (s *Server) handleDistrictsPDF(c *gin.Context) {
	res, ok := s.result(c)
	if !ok {
		return
	}
	filtered := dashboard.FilterDistricts(res.Districts, selection(c))

	var buf bytes.Buffer
	if err := dashboard.WritePDF(&buf, pdfTitle, dashboard.Table(filtered), dashboard.Summarize(filtered)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	download(c, "application/pdf", dashboard.PDFFileName, buf.Bytes())
}

func download(c *gin.Context, contentType, name string, body []byte) {
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", name))
	c.Status(http.StatusOK)
	_, _ = c.Writer.Write(body)
}

func (s *Server) handleFacilities(c *gin.Context) {
	res, ok := s.result(c)
	if !ok {
		return
	}
	facilities := dashboard.FilterFacilities(res.Facilities, res.Districts, selection(c))
	c.JSON(http.StatusOK, gin.H{"markers": dashboard.Markers(facilities), "count": len(facilities)})
}

func (s *Server) handleHospitalsChart(c *gin.Context) {
	res, ok := s.result(c)
	if !ok {
		return
	}
	sel := dashboard.NewSelection(c.Query("province"), "")
	c.JSON(http.StatusOK, dashboard.HospitalsChart(res.Districts, sel.Province))
}

func (s *Server) handlePressureChart(c *gin.Context) {
	res, ok := s.result(c)
	if !ok {
		return
	}
	sel := dashboard.NewSelection(c.Query("province"), "")
	c.JSON(http.StatusOK, dashboard.PressureChart(res.Districts, sel.Province))
}

func (s *Server) handleSaturated(c *gin.Context) {
	t, ok := s.threshold(c)
	if !ok {
		return
	}
	res, ok := s.result(c)
	if !ok {
		return
	}
	filtered := dashboard.FilterDistricts(res.Districts, selection(c))
	rows := dashboard.Saturated(filtered, t)
	c.JSON(http.StatusOK, gin.H{"threshold": t, "saturated": rows, "count": len(rows)})
}

func (s *Server) handleMap(c *gin.Context) {
	variable, err := dashboard.VariableByColumn(c.Query("variable"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	palette, err := dashboard.PaletteByName(c.Query("palette"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, ok := s.threshold(c)
	if !ok {
		return
	}
	res, ok := s.result(c)
	if !ok {
		return
	}
	// The choropleth always covers every canton; only markers follow the selection.
	facilities := dashboard.FilterFacilities(res.Facilities, res.Districts, selection(c))
	c.JSON(http.StatusOK, dashboard.BuildMap(res.Districts, facilities, variable, palette, t))
}

func (s *Server) handleSummary(c *gin.Context) {
	res, ok := s.result(c)
	if !ok {
		return
	}
	filtered := dashboard.FilterDistricts(res.Districts, selection(c))
	c.JSON(http.StatusOK, gin.H{
		"summary": dashboard.Summarize(filtered),
		"run": gin.H{
			"districts":             res.Summary.Districts,
			"facilities_read":       res.Summary.FacilitiesRead,
			"facilities_kept":       res.Summary.FacilitiesKept,
			"facilities_joined":     res.Summary.FacilitiesJoined,
			"facilities_unmatched":  res.Summary.FacilitiesUnmatched,
			"districts_no_facility": res.Summary.DistrictsNoFacility,
			"population_duplicates": res.Summary.PopulationDuplicates,
		},
	})
}

func (s *Server) handleReload(c *gin.Context) {
	s.results.Flush()
	if _, ok := s.result(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}
