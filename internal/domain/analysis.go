package domain

// RiskAnalysis mirrors the analysis backend's portfolio risk response.
type RiskAnalysis struct {
	TotalValue    float64 `json:"totalValue"`
	DailyVaR      float64 `json:"dailyVaR"`
	AnnualizedVol float64 `json:"annualizedVoL"`
	SharpeRatio   float64 `json:"sharpeRatio"`
	Beta          float64 `json:"beta"`
	RiskLevel     string  `json:"riskLevel"`
}

// AnalysisAsset is the request shape the analysis backend expects per holding.
type AnalysisAsset struct {
	Symbol   string   `json:"symbol"`
	Shares   float64  `json:"shares"`
	AvgPrice *float64 `json:"avgPrice,omitempty"`
}
