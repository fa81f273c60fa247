package training

import (
	"fmt"
	"os"

	chart "github.com/wcharczuk/go-chart"
)

// RenderLossCurve writes a PNG of training and validation loss per
// epoch to path.
func RenderLossCurve(history []EpochMetrics, path string) error {
	if len(history) == 0 {
		return fmt.Errorf("no epochs to plot")
	}

	epochs := make([]float64, len(history))
	trainLoss := make([]float64, len(history))
	valLoss := make([]float64, len(history))
	for i, m := range history {
		epochs[i] = float64(m.Epoch)
		trainLoss[i] = m.TrainLoss
		valLoss[i] = m.ValLoss
	}

	graph := chart.Chart{
		Title:      "Loss",
		TitleStyle: chart.StyleShow(),
		XAxis: chart.XAxis{
			Name:      "Epoch",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		YAxis: chart.YAxis{
			Name:      "Loss",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "train",
				XValues: epochs,
				YValues: trainLoss,
			},
			chart.ContinuousSeries{
				Name:    "validation",
				XValues: epochs,
				YValues: valLoss,
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}

	return renderPNG(&graph, path)
}

// RenderAccuracyCurve writes a PNG of training and validation accuracy
// per epoch to path.
func RenderAccuracyCurve(history []EpochMetrics, path string) error {
	if len(history) == 0 {
		return fmt.Errorf("no epochs to plot")
	}

	epochs := make([]float64, len(history))
	trainAcc := make([]float64, len(history))
	valAcc := make([]float64, len(history))
	for i, m := range history {
		epochs[i] = float64(m.Epoch)
		trainAcc[i] = m.TrainAccuracy
		valAcc[i] = m.ValAccuracy
	}

	graph := chart.Chart{
		Title:      "Accuracy",
		TitleStyle: chart.StyleShow(),
		XAxis: chart.XAxis{
			Name:      "Epoch",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		YAxis: chart.YAxis{
			Name:      "Accuracy",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "train",
				XValues: epochs,
				YValues: trainAcc,
			},
			chart.ContinuousSeries{
				Name:    "validation",
				XValues: epochs,
				YValues: valAcc,
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}

	return renderPNG(&graph, path)
}

func renderPNG(graph *chart.Chart, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plot file: %v", err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("failed to render plot: %v", err)
	}
	return nil
}
