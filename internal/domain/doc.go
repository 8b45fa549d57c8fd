// Package domain models the flood-risk dashboard: monitoring stations, risk
// predictions, prediction history and cross-model evaluation metrics, plus the
// pure transforms that shape them for rendering.
//
// # Backend Contract
//
// All data comes from the prediction backend over four GET endpoints:
//
//	/estacoes/             {"estacoes": [{"name"|"nome", "lat", "lon"}, ...]}
//	/predict/?lat&lon      {"probabilidade", "dados_atuais": {"Temperatura", "Umidade", "Vento", "Precipitacao"}}
//	/predict/history/?lat&lon&limit
//	                       [{"timestamp", "probability"}, ...] | {"noData": true} | {"erro": true, "detail"}
//	/evaluate/             {"Ensemble"|"Random_Forest"|"XGBoost"|"LSTM": {"accuracy", "precision", "recall", "f1_score"}}
//
// Failed predictions answer with a non-2xx status and a FastAPI error body
// {"detail": "..."}; the detail is carried by [UpstreamError].
//
// # Units
//
// Readings keep the backend's units: temperature in °C, relative humidity in
// percent, wind speed in km/h and precipitation in mm. Probabilities are in
// [0,1].
//
// # Severity Tiers
//
// A successful prediction is drawn with a tier-coloured marker:
//
//	p >= 0.75         high    (red)
//	0.5 <= p < 0.75   medium  (yellow)
//	p < 0.5           low     (green)
//
// Stations that are not selected always use the neutral marker. See [SelectTier].
package domain
