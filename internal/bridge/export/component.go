package export

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var jsonit = jsoniter.ConfigCompatibleWithStandardLibrary

// componentSource renders the React component embedding the chart
// configuration. The scaffolded project's build turns this into the
// component archive.
func componentSource(chartConfig map[string]any) (string, error) {
	cfg, err := jsonit.MarshalIndent(chartConfig, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "unable to encode chart config")
	}

	return fmt.Sprintf(`import React from 'react';
import { useQuery } from '@incorta-org/component-sdk';
import Highcharts from 'highcharts';
import HighchartsReact from 'highcharts-react-official';

interface Props {
  query: string;
}

const ChartComponent: React.FC<Props> = ({ query }) => {
  const { data, loading, error } = useQuery(query);

  if (loading) return <div>Loading...</div>;
  if (error) return <div>Error: {error.message}</div>;

  const chartOptions = %s;

  return (
    <div style={{ width: '100%%', height: '400px' }}>
      <HighchartsReact
        highcharts={Highcharts}
        options={chartOptions}
      />
    </div>
  );
};

export default ChartComponent;
`, string(cfg)), nil
}
